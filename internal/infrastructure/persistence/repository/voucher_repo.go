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

// VoucherRepository implements port.VoucherRepository
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) port.VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

const voucherColumns = `id, student_id, student_name, roll_number, class_id, class_name, month,
	amount, issue_date, due_date, status, voucher_number, message, created_at, created_by`

// Create creates a new voucher record. The (student_id, month) index turns a
// second bill for the same month into port.ErrDuplicate.
func (r *VoucherRepository) Create(ctx context.Context, v *entity.Voucher) error {
	ensureID(&v.ID)
	query := `INSERT INTO vouchers (` + voucherColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		v.ID,
		v.StudentID,
		v.StudentName,
		v.RollNumber,
		v.ClassID,
		v.ClassName,
		v.Month,
		v.Amount,
		v.IssueDate.UTC(),
		v.DueDate.UTC(),
		v.Status,
		v.VoucherNumber,
		v.Message,
		v.CreatedAt.UTC(),
		v.CreatedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create voucher",
			zap.String("student_id", v.StudentID),
			zap.String("month", v.Month),
			zap.Error(err))
		return wrapInsertError(err, fmt.Sprintf("voucher for student %s month %s", v.StudentID, v.Month))
	}
	return nil
}

// GetByID retrieves a voucher by ID
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// FindByStudentAndMonth retrieves the bill of a student for a month
func (r *VoucherRepository) FindByStudentAndMonth(ctx context.Context, studentID, month string) (*entity.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE student_id = ? AND month = ?`
	return r.getOne(ctx, query, studentID, month)
}

func (r *VoucherRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.Voucher, error) {
	v, err := scanVoucher(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher", zap.Any("args", args), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return v, nil
}

// List returns vouchers matching filter, newest first
func (r *VoucherRepository) List(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, error) {
	var conds []string
	var args []interface{}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conds = append(conds, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.Month != "" {
		conds = append(conds, "month = ?")
		args = append(args, filter.Month)
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers` + where(conds) +
		` ORDER BY created_at DESC, voucher_number`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list vouchers", zap.Error(err))
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	out := []*entity.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateStatus updates voucher status
func (r *VoucherRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE vouchers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		r.logger.Error("Failed to update voucher status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update voucher status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("voucher %s not found", id)
	}
	return nil
}

// Delete removes a voucher
func (r *VoucherRepository) Delete(ctx context.Context, id string) error {
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM vouchers WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete voucher", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete voucher: %w", err)
	}
	return nil
}

func scanVoucher(row rowScanner) (*entity.Voucher, error) {
	var v entity.Voucher
	err := row.Scan(
		&v.ID,
		&v.StudentID,
		&v.StudentName,
		&v.RollNumber,
		&v.ClassID,
		&v.ClassName,
		&v.Month,
		&v.Amount,
		&v.IssueDate,
		&v.DueDate,
		&v.Status,
		&v.VoucherNumber,
		&v.Message,
		&v.CreatedAt,
		&v.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Verify interface compliance
var _ port.VoucherRepository = (*VoucherRepository)(nil)
