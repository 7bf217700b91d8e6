package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, h *entity.VoucherHistory) error {
	ensureID(&h.ID)
	query := `
		INSERT INTO voucher_history (
			id, voucher_id, previous_status, new_status, action, actor_id, note, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		h.ID,
		h.VoucherID,
		h.PreviousStatus,
		h.NewStatus,
		h.Action,
		h.ActorID,
		h.Note,
		h.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}
	return nil
}

// GetByVoucherID retrieves all history records for a voucher, oldest first
func (r *HistoryRepository) GetByVoucherID(ctx context.Context, voucherID string) ([]*entity.VoucherHistory, error) {
	query := `
		SELECT id, voucher_id, previous_status, new_status, action, actor_id, note, timestamp
		FROM voucher_history
		WHERE voucher_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, voucherID)
	if err != nil {
		r.logger.Error("Failed to get history records", zap.String("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	out := []*entity.VoucherHistory{}
	for rows.Next() {
		var h entity.VoucherHistory
		err := rows.Scan(
			&h.ID,
			&h.VoucherID,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.Action,
			&h.ActorID,
			&h.Note,
			&h.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
