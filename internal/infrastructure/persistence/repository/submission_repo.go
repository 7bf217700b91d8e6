package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
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

const submissionColumns = `id, voucher_id, student_id, payment_method, payment_proof, proof_content_type,
	proof_pages, payment_date, submission_date, status, receipt_number, verified_by, verified_at, remarks`

// Create inserts a submission. The partial index on active submissions turns
// a second Pending or Verified row for one voucher into port.ErrDuplicate.
func (r *SubmissionRepository) Create(ctx context.Context, sub *entity.Submission) error {
	ensureID(&sub.ID)
	query := `INSERT INTO submissions (` + submissionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		sub.ID,
		sub.VoucherID,
		sub.StudentID,
		sub.PaymentMethod,
		sub.PaymentProof,
		sub.ProofContentType,
		sub.ProofPages,
		sub.PaymentDate.UTC(),
		sub.SubmissionDate.UTC(),
		sub.Status,
		sub.ReceiptNumber,
		sub.VerifiedBy,
		utcOrNil(sub.VerifiedAt),
		sub.Remarks,
	)
	if err != nil {
		r.logger.Error("Failed to create submission", zap.String("voucher_id", sub.VoucherID), zap.Error(err))
		return wrapInsertError(err, "active submission for voucher "+sub.VoucherID)
	}
	return nil
}

// GetByID retrieves a submission by ID
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetActiveByVoucherID retrieves the Pending or Verified submission of a voucher
func (r *SubmissionRepository) GetActiveByVoucherID(ctx context.Context, voucherID string) (*entity.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
		WHERE voucher_id = ? AND status IN (?, ?)`
	return r.getOne(ctx, query, voucherID, entity.SubmissionStatusPending, entity.SubmissionStatusVerified)
}

func (r *SubmissionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.Submission, error) {
	sub, err := scanSubmission(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get submission", zap.Any("args", args), zap.Error(err))
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// List returns submissions matching filter, most recent first
func (r *SubmissionRepository) List(ctx context.Context, filter port.SubmissionFilter) ([]*entity.Submission, error) {
	var conds []string
	var args []interface{}
	if filter.VoucherID != "" {
		conds = append(conds, "voucher_id = ?")
		args = append(args, filter.VoucherID)
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions` + where(conds) +
		` ORDER BY submission_date DESC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	out := []*entity.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// PendingVoucherIDs returns the subset of voucherIDs with a Pending submission
func (r *SubmissionRepository) PendingVoucherIDs(ctx context.Context, voucherIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(voucherIDs) == 0 {
		return out, nil
	}

	args := make([]interface{}, 0, len(voucherIDs)+1)
	args = append(args, entity.SubmissionStatusPending)
	for _, id := range voucherIDs {
		args = append(args, id)
	}
	query := `SELECT DISTINCT voucher_id FROM submissions
		WHERE status = ? AND voucher_id IN (` + placeholders(len(voucherIDs)) + `)`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query pending submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to query pending submissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan voucher id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// UpdateDecision stores the outcome of a verification decision
func (r *SubmissionRepository) UpdateDecision(ctx context.Context, sub *entity.Submission) error {
	query := `
		UPDATE submissions
		SET status = ?, receipt_number = ?, verified_by = ?, verified_at = ?, remarks = ?
		WHERE id = ? AND status = ?
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		sub.Status,
		sub.ReceiptNumber,
		sub.VerifiedBy,
		utcOrNil(sub.VerifiedAt),
		sub.Remarks,
		sub.ID,
		entity.SubmissionStatusPending,
	)
	if err != nil {
		r.logger.Error("Failed to update submission decision", zap.String("id", sub.ID), zap.Error(err))
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		var status string
		err := exec.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = ?`, sub.ID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("submission %s not found", sub.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to read submission status: %w", err)
		}
		return fmt.Errorf("%w: submission %s is %s", port.ErrAlreadyDecided, sub.ID, status)
	}
	return nil
}

func scanSubmission(row rowScanner) (*entity.Submission, error) {
	var sub entity.Submission
	var verifiedAt sql.NullTime
	err := row.Scan(
		&sub.ID,
		&sub.VoucherID,
		&sub.StudentID,
		&sub.PaymentMethod,
		&sub.PaymentProof,
		&sub.ProofContentType,
		&sub.ProofPages,
		&sub.PaymentDate,
		&sub.SubmissionDate,
		&sub.Status,
		&sub.ReceiptNumber,
		&sub.VerifiedBy,
		&verifiedAt,
		&sub.Remarks,
	)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		sub.VerifiedAt = &verifiedAt.Time
	}
	return &sub, nil
}

// Verify interface compliance
var _ port.SubmissionRepository = (*SubmissionRepository)(nil)
