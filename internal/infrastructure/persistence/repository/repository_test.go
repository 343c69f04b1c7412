package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/bid-reconciler/migrations"
	"github.com/garyjia/bid-reconciler/pkg/database"
)

func setupDB(t *testing.T) (*sql.DB, *sqlite.DB) {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "bids.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return db.DB, sqlite.NewDB(db.DB, logger)
}

func boqItems(tenderID string) []entity.MasterBoqItem {
	return []entity.MasterBoqItem{
		{ID: "boq-2", TenderID: tenderID, ItemNumber: "1.1.2", Description: "Concrete", Quantity: 40, UOM: "M3"},
		{ID: "boq-1", TenderID: tenderID, ItemNumber: "1.1.1", Description: "Excavation", Quantity: 100, UOM: "M3"},
	}
}

func TestBoqRepository_ReplaceAndList(t *testing.T) {
	ctx := context.Background()
	db, _ := setupDB(t)
	repo := NewBoqRepository(db, zap.NewNop())

	require.NoError(t, repo.ReplaceForTender(ctx, "T-1", boqItems("T-1")))
	require.NoError(t, repo.ReplaceForTender(ctx, "T-2", boqItems("T-2")[:1]))

	items, err := repo.ListByTender(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	// sheet order, not id order
	assert.Equal(t, "boq-2", items[0].ID)
	assert.Equal(t, "boq-1", items[1].ID)
	assert.Equal(t, boqItems("T-1"), items)

	require.NoError(t, repo.ReplaceForTender(ctx, "T-1", []entity.MasterBoqItem{
		{ID: "boq-9", TenderID: "T-1", ItemNumber: "9.9.9", Description: "Fencing", Quantity: 1, UOM: "LS"},
	}))
	items, err = repo.ListByTender(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "boq-9", items[0].ID)

	other, err := repo.ListByTender(ctx, "T-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)

	none, err := repo.ListByTender(ctx, "T-404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBoqRepository_ReplaceRollsBackInTransaction(t *testing.T) {
	ctx := context.Background()
	db, tx := setupDB(t)
	repo := NewBoqRepository(db, zap.NewNop())
	require.NoError(t, repo.ReplaceForTender(ctx, "T-1", boqItems("T-1")))

	duplicate := []entity.MasterBoqItem{
		{ID: "boq-1", TenderID: "T-1", ItemNumber: "1"},
		{ID: "boq-1", TenderID: "T-1", ItemNumber: "2"},
	}
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		return repo.ReplaceForTender(ctx, "T-1", duplicate)
	})
	require.Error(t, err)

	items, err := repo.ListByTender(ctx, "T-1")
	require.NoError(t, err)
	assert.Len(t, items, 2, "failed replace must keep the previous BOQ")
}

func newSubmission(id, bidderID string, createdAt time.Time) *entity.BidSubmission {
	return &entity.BidSubmission{
		ID:            id,
		RunID:         "run-" + id,
		TenderID:      "T-1",
		BidderID:      bidderID,
		Currency:      "SAR",
		FxRate:        1,
		ImportedCount: 2,
		SkippedCount:  1,
		TotalAmount:   8500.5,
		ForceImport:   true,
		TablesVersion: "builtin-2024.1",
		CreatedAt:     createdAt,
	}
}

func submissionItems() []entity.BidSubmissionItem {
	return []entity.BidSubmissionItem{
		{RowIndex: 3, ItemNumber: "EXT-1", Description: "Signage", MatchType: "extra", Quantity: 1, UOM: "LS", UnitRate: 500, NormalizedUnitRate: 500, NormalizedAmount: 500, IsComparable: true},
		{RowIndex: 2, ItemNumber: "1.1.1", Description: "Excavation", BoqItemID: "boq-1", MatchType: "exact", Quantity: 100, UOM: "M3", UnitRate: 80.005, NormalizedUnitRate: 80.005, NormalizedAmount: 8000.5, IsComparable: false},
	}
}

func TestSubmissionRepository_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	db, _ := setupDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop())
	createdAt := time.Now().UTC().Truncate(time.Second)

	items := submissionItems()
	require.NoError(t, repo.Create(ctx, newSubmission("sub-1", "B-1", createdAt), items))
	assert.NotZero(t, items[0].ID)
	assert.Equal(t, "sub-1", items[1].SubmissionID)

	active, err := repo.GetActive(ctx, "T-1", "B-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "sub-1", active.ID)
	assert.Equal(t, "run-sub-1", active.RunID)
	assert.Equal(t, 8500.5, active.TotalAmount)
	assert.True(t, active.ForceImport)
	assert.Equal(t, "builtin-2024.1", active.TablesVersion)
	assert.WithinDuration(t, createdAt, active.CreatedAt, time.Second)
	assert.Nil(t, active.SupersededAt)

	stored, err := repo.GetItems(ctx, "sub-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 2, stored[0].RowIndex)
	assert.Equal(t, "boq-1", stored[0].BoqItemID)
	assert.False(t, stored[0].IsComparable)
	assert.Equal(t, "", stored[1].BoqItemID)
	assert.Equal(t, "extra", stored[1].MatchType)
	assert.True(t, stored[1].IsComparable)

	missing, err := repo.GetActive(ctx, "T-1", "B-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubmissionRepository_Supersede(t *testing.T) {
	ctx := context.Background()
	db, tx := setupDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop())
	first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	second := first.Add(30 * time.Minute)

	require.NoError(t, repo.Create(ctx, newSubmission("sub-1", "B-1", first), submissionItems()))
	require.NoError(t, repo.Create(ctx, newSubmission("sub-other", "B-2", first), nil))

	// a second live submission for the same bidder violates the active index
	err := repo.Create(ctx, newSubmission("sub-dup", "B-1", second), nil)
	require.Error(t, err)

	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := repo.SupersedeActive(ctx, "T-1", "B-1", second)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)
		return repo.Create(ctx, newSubmission("sub-2", "B-1", second), submissionItems())
	})
	require.NoError(t, err)

	active, err := repo.GetActive(ctx, "T-1", "B-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "sub-2", active.ID)

	history, err := repo.ListByBidder(ctx, "T-1", "B-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sub-2", history[0].ID)
	assert.Equal(t, "sub-1", history[1].ID)
	require.NotNil(t, history[1].SupersededAt)
	assert.WithinDuration(t, second, *history[1].SupersededAt, time.Second)

	// the older submission keeps its lines
	old, err := repo.GetItems(ctx, "sub-1")
	require.NoError(t, err)
	assert.Len(t, old, 2)

	other, err := repo.GetActive(ctx, "T-1", "B-2")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Nil(t, other.SupersededAt)
}

func TestSubmissionRepository_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	db, tx := setupDB(t)
	repo := NewSubmissionRepository(db, zap.NewNop())
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, newSubmission("sub-1", "B-1", now), nil))

	failure := errors.New("persist failed")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.SupersedeActive(ctx, "T-1", "B-1", now); err != nil {
			return err
		}
		if err := repo.Create(ctx, newSubmission("sub-2", "B-1", now), submissionItems()); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	active, err := repo.GetActive(ctx, "T-1", "B-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "sub-1", active.ID)

	items, err := repo.GetItems(ctx, "sub-2")
	require.NoError(t, err)
	assert.Empty(t, items)
}
