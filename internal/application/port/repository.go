package port

import (
	"context"
	"errors"

	"github.com/garyjia/school-fees/internal/domain/entity"
)

// ErrDuplicate is wrapped by repositories when a unique index rejects an insert
var ErrDuplicate = errors.New("duplicate record")

// ErrAlreadyDecided is wrapped by UpdateDecision when the submission is no
// longer Pending, e.g. a concurrent decision was stored first
var ErrAlreadyDecided = errors.New("submission already decided")

// Repositories return (nil, nil) from single-record lookups when nothing matches.

// FeeStructureRepository defines persistence operations for FeeStructure.
// Grade is unique.
type FeeStructureRepository interface {
	Create(ctx context.Context, fs *entity.FeeStructure) error
	GetByID(ctx context.Context, id string) (*entity.FeeStructure, error)
	GetByGrade(ctx context.Context, grade string) (*entity.FeeStructure, error)
	List(ctx context.Context) ([]*entity.FeeStructure, error)
	Update(ctx context.Context, fs *entity.FeeStructure) error
	Delete(ctx context.Context, id string) error
}

// ClassRepository defines persistence operations for Class
type ClassRepository interface {
	Create(ctx context.Context, class *entity.Class) error
	GetByID(ctx context.Context, id string) (*entity.Class, error)
	List(ctx context.Context) ([]*entity.Class, error)
}

// StudentRepository defines persistence operations for Student.
// The list queries only return records with role "student".
type StudentRepository interface {
	Create(ctx context.Context, student *entity.Student) error
	GetByID(ctx context.Context, id string) (*entity.Student, error)
	ListByClass(ctx context.Context, classID string) ([]*entity.Student, error)
	ListByGrade(ctx context.Context, grade string) ([]*entity.Student, error)
}

// VoucherFilter narrows a voucher listing. Empty fields are ignored.
type VoucherFilter struct {
	StudentID string
	ClassID   string
	Month     string
}

// VoucherRepository defines persistence operations for Voucher.
// (StudentID, Month) is unique; Create wraps ErrDuplicate when it is violated.
type VoucherRepository interface {
	Create(ctx context.Context, voucher *entity.Voucher) error
	GetByID(ctx context.Context, id string) (*entity.Voucher, error)
	FindByStudentAndMonth(ctx context.Context, studentID, month string) (*entity.Voucher, error)
	List(ctx context.Context, filter VoucherFilter) ([]*entity.Voucher, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

// SubmissionFilter narrows a submission listing. Empty fields are ignored.
type SubmissionFilter struct {
	VoucherID string
	StudentID string
	Status    string
}

// SubmissionRepository defines persistence operations for Submission.
// At most one active (Pending or Verified) submission exists per voucher;
// Create wraps ErrDuplicate when a second one is inserted.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *entity.Submission) error
	GetByID(ctx context.Context, id string) (*entity.Submission, error)
	GetActiveByVoucherID(ctx context.Context, voucherID string) (*entity.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]*entity.Submission, error)

	// PendingVoucherIDs returns the subset of voucherIDs with a Pending submission
	PendingVoucherIDs(ctx context.Context, voucherIDs []string) (map[string]bool, error)

	// UpdateDecision stores status, receipt number, verifier, verification time and
	// remarks. It only applies to a Pending submission; otherwise it wraps
	// ErrAlreadyDecided.
	UpdateDecision(ctx context.Context, submission *entity.Submission) error
}

// HistoryRepository defines persistence operations for VoucherHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.VoucherHistory) error
	GetByVoucherID(ctx context.Context, voucherID string) ([]*entity.VoucherHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
