package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/application/port"
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/persistence/sqlite"
)

// SubmissionRepository implements port.SubmissionRepository
type SubmissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) port.SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

const submissionColumns = `
	id, run_id, tender_id, bidder_id, currency, fx_rate,
	imported_count, skipped_count, total_amount, force_import,
	tables_version, created_at, superseded_at
`

// Create inserts the submission header and its accepted lines
func (r *SubmissionRepository) Create(ctx context.Context, submission *entity.BidSubmission, items []entity.BidSubmissionItem) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	query := `
		INSERT INTO bid_submissions (` + submissionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := exec.ExecContext(ctx, query,
		submission.ID,
		submission.RunID,
		submission.TenderID,
		submission.BidderID,
		submission.Currency,
		submission.FxRate,
		submission.ImportedCount,
		submission.SkippedCount,
		submission.TotalAmount,
		submission.ForceImport,
		submission.TablesVersion,
		submission.CreatedAt,
		submission.SupersededAt,
	)
	if err != nil {
		r.logger.Error("Failed to create submission",
			zap.String("tender_id", submission.TenderID),
			zap.String("bidder_id", submission.BidderID),
			zap.Error(err))
		return fmt.Errorf("failed to create submission: %w", err)
	}

	itemQuery := `
		INSERT INTO bid_submission_items (
			submission_id, row_index, item_number, description, boq_item_id, match_type,
			quantity, uom, unit_rate, normalized_unit_rate, normalized_amount, is_comparable
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range items {
		item := &items[i]
		item.SubmissionID = submission.ID

		var boqItemID sql.NullString
		if item.BoqItemID != "" {
			boqItemID = sql.NullString{String: item.BoqItemID, Valid: true}
		}

		result, err := exec.ExecContext(ctx, itemQuery,
			item.SubmissionID,
			item.RowIndex,
			item.ItemNumber,
			item.Description,
			boqItemID,
			item.MatchType,
			item.Quantity,
			item.UOM,
			item.UnitRate,
			item.NormalizedUnitRate,
			item.NormalizedAmount,
			item.IsComparable,
		)
		if err != nil {
			r.logger.Error("Failed to create submission item",
				zap.String("submission_id", submission.ID),
				zap.Int("row_index", item.RowIndex),
				zap.Error(err))
			return fmt.Errorf("failed to create submission item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
	}

	return nil
}

// SupersedeActive stamps superseded_at on the bidder's live submission
func (r *SubmissionRepository) SupersedeActive(ctx context.Context, tenderID, bidderID string, at time.Time) (int64, error) {
	query := `
		UPDATE bid_submissions
		SET superseded_at = ?
		WHERE tender_id = ? AND bidder_id = ? AND superseded_at IS NULL
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, at, tenderID, bidderID)
	if err != nil {
		r.logger.Error("Failed to supersede submission",
			zap.String("tender_id", tenderID),
			zap.String("bidder_id", bidderID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to supersede submission: %w", err)
	}

	return result.RowsAffected()
}

// GetActive retrieves the bidder's live submission, or nil
func (r *SubmissionRepository) GetActive(ctx context.Context, tenderID, bidderID string) (*entity.BidSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM bid_submissions
		WHERE tender_id = ? AND bidder_id = ? AND superseded_at IS NULL
	`

	submission, err := scanSubmission(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, tenderID, bidderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active submission",
			zap.String("tender_id", tenderID),
			zap.String("bidder_id", bidderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return submission, nil
}

// GetItems retrieves the accepted lines of a submission in row order
func (r *SubmissionRepository) GetItems(ctx context.Context, submissionID string) ([]entity.BidSubmissionItem, error) {
	query := `
		SELECT id, submission_id, row_index, item_number, description, boq_item_id, match_type,
			quantity, uom, unit_rate, normalized_unit_rate, normalized_amount, is_comparable
		FROM bid_submission_items
		WHERE submission_id = ?
		ORDER BY row_index, id
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, submissionID)
	if err != nil {
		r.logger.Error("Failed to get submission items", zap.String("submission_id", submissionID), zap.Error(err))
		return nil, fmt.Errorf("failed to get submission items: %w", err)
	}
	defer rows.Close()

	var items []entity.BidSubmissionItem
	for rows.Next() {
		var item entity.BidSubmissionItem
		var boqItemID sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.SubmissionID,
			&item.RowIndex,
			&item.ItemNumber,
			&item.Description,
			&boqItemID,
			&item.MatchType,
			&item.Quantity,
			&item.UOM,
			&item.UnitRate,
			&item.NormalizedUnitRate,
			&item.NormalizedAmount,
			&item.IsComparable,
		); err != nil {
			return nil, fmt.Errorf("failed to scan submission item: %w", err)
		}
		item.BoqItemID = boqItemID.String
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListByBidder returns every submission of a bidder, newest first
func (r *SubmissionRepository) ListByBidder(ctx context.Context, tenderID, bidderID string) ([]*entity.BidSubmission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM bid_submissions
		WHERE tender_id = ? AND bidder_id = ?
		ORDER BY created_at DESC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, tenderID, bidderID)
	if err != nil {
		r.logger.Error("Failed to list submissions",
			zap.String("tender_id", tenderID),
			zap.String("bidder_id", bidderID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var submissions []*entity.BidSubmission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, submission)
	}

	return submissions, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*entity.BidSubmission, error) {
	var submission entity.BidSubmission
	var supersededAt sql.NullTime

	err := row.Scan(
		&submission.ID,
		&submission.RunID,
		&submission.TenderID,
		&submission.BidderID,
		&submission.Currency,
		&submission.FxRate,
		&submission.ImportedCount,
		&submission.SkippedCount,
		&submission.TotalAmount,
		&submission.ForceImport,
		&submission.TablesVersion,
		&submission.CreatedAt,
		&supersededAt,
	)
	if err != nil {
		return nil, err
	}

	if supersededAt.Valid {
		submission.SupersededAt = &supersededAt.Time
	}
	return &submission, nil
}

// Verify interface compliance
var _ port.SubmissionRepository = (*SubmissionRepository)(nil)
