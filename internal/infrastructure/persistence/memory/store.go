// Package memory is an in-process store for local development and tests.
// Data does not survive a restart and transactions do not roll back.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

// Store holds every collection behind one lock
type Store struct {
	mu            sync.RWMutex
	classes       map[string]entity.Class
	students      map[string]entity.Student
	feeStructures map[string]entity.FeeStructure
	vouchers      map[string]entity.Voucher
	submissions   map[string]entity.Submission
	history       []entity.VoucherHistory
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		classes:       make(map[string]entity.Class),
		students:      make(map[string]entity.Student),
		feeStructures: make(map[string]entity.FeeStructure),
		vouchers:      make(map[string]entity.Voucher),
		submissions:   make(map[string]entity.Submission),
	}
}

func (s *Store) Classes() port.ClassRepository              { return classRepo{s} }
func (s *Store) Students() port.StudentRepository           { return studentRepo{s} }
func (s *Store) FeeStructures() port.FeeStructureRepository { return feeStructureRepo{s} }
func (s *Store) Vouchers() port.VoucherRepository           { return voucherRepo{s} }
func (s *Store) Submissions() port.SubmissionRepository     { return submissionRepo{s} }
func (s *Store) History() port.HistoryRepository            { return historyRepo{s} }

// WithTransaction runs fn directly
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func sortByCreated[T any](items []*T, less func(a, b *T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

var _ port.TransactionManager = (*Store)(nil)
