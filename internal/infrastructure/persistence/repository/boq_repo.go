package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/application/port"
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/persistence/sqlite"
)

// BoqRepository implements port.BoqRepository
type BoqRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBoqRepository creates a new BOQ repository
func NewBoqRepository(db *sql.DB, logger *zap.Logger) port.BoqRepository {
	return &BoqRepository{
		db:     db,
		logger: logger,
	}
}

// ReplaceForTender deletes the tender's BOQ and inserts items in order.
// Run it inside TransactionManager.WithTransaction to make the swap atomic.
func (r *BoqRepository) ReplaceForTender(ctx context.Context, tenderID string, items []entity.MasterBoqItem) error {
	exec := sqlite.ExecutorFor(ctx, r.db)

	if _, err := exec.ExecContext(ctx, `DELETE FROM boq_items WHERE tender_id = ?`, tenderID); err != nil {
		r.logger.Error("Failed to clear BOQ", zap.String("tender_id", tenderID), zap.Error(err))
		return fmt.Errorf("failed to clear BOQ: %w", err)
	}

	query := `
		INSERT INTO boq_items (tender_id, id, position, item_number, description, quantity, uom)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for i, item := range items {
		_, err := exec.ExecContext(ctx, query,
			tenderID,
			item.ID,
			i,
			item.ItemNumber,
			item.Description,
			item.Quantity,
			item.UOM,
		)
		if err != nil {
			r.logger.Error("Failed to insert BOQ item",
				zap.String("tender_id", tenderID),
				zap.String("id", item.ID),
				zap.Error(err))
			return fmt.Errorf("failed to insert BOQ item %s: %w", item.ID, err)
		}
	}

	r.logger.Info("BOQ replaced", zap.String("tender_id", tenderID), zap.Int("items", len(items)))
	return nil
}

// ListByTender returns the tender's BOQ in its original order
func (r *BoqRepository) ListByTender(ctx context.Context, tenderID string) ([]entity.MasterBoqItem, error) {
	query := `
		SELECT id, tender_id, item_number, description, quantity, uom
		FROM boq_items
		WHERE tender_id = ?
		ORDER BY position
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, tenderID)
	if err != nil {
		r.logger.Error("Failed to list BOQ", zap.String("tender_id", tenderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list BOQ: %w", err)
	}
	defer rows.Close()

	var items []entity.MasterBoqItem
	for rows.Next() {
		var item entity.MasterBoqItem
		if err := rows.Scan(
			&item.ID,
			&item.TenderID,
			&item.ItemNumber,
			&item.Description,
			&item.Quantity,
			&item.UOM,
		); err != nil {
			return nil, fmt.Errorf("failed to scan BOQ item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// Verify interface compliance
var _ port.BoqRepository = (*BoqRepository)(nil)
