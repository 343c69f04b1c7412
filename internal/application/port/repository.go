package port

import (
	"context"
	"time"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// BoqRepository stores the master bill of quantities per tender
type BoqRepository interface {
	// ReplaceForTender swaps the tender's whole BOQ for items
	ReplaceForTender(ctx context.Context, tenderID string, items []entity.MasterBoqItem) error
	// ListByTender returns the tender's BOQ in sheet order
	ListByTender(ctx context.Context, tenderID string) ([]entity.MasterBoqItem, error)
}

// SubmissionRepository stores committed bid submissions
type SubmissionRepository interface {
	Create(ctx context.Context, submission *entity.BidSubmission, items []entity.BidSubmissionItem) error
	// SupersedeActive marks the current submission of a bidder as superseded
	// and returns how many rows changed
	SupersedeActive(ctx context.Context, tenderID, bidderID string, at time.Time) (int64, error)
	// GetActive returns nil when the bidder has no live submission
	GetActive(ctx context.Context, tenderID, bidderID string) (*entity.BidSubmission, error)
	GetItems(ctx context.Context, submissionID string) ([]entity.BidSubmissionItem, error)
	ListByBidder(ctx context.Context, tenderID, bidderID string) ([]*entity.BidSubmission, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
