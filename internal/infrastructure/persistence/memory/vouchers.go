package memory

import (
	"context"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

type voucherRepo struct{ s *Store }

func (r voucherRepo) Create(ctx context.Context, v *entity.Voucher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.vouchers {
		if existing.StudentID == v.StudentID && existing.Month == v.Month {
			return fmt.Errorf("%w: voucher for student %s month %s", port.ErrDuplicate, v.StudentID, v.Month)
		}
	}
	v.ID = newID(v.ID)
	r.s.vouchers[v.ID] = *v
	return nil
}

func (r voucherRepo) GetByID(ctx context.Context, id string) (*entity.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.vouchers[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r voucherRepo) FindByStudentAndMonth(ctx context.Context, studentID, month string) (*entity.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, v := range r.s.vouchers {
		if v.StudentID == studentID && v.Month == month {
			v := v
			return &v, nil
		}
	}
	return nil, nil
}

func (r voucherRepo) List(ctx context.Context, filter port.VoucherFilter) ([]*entity.Voucher, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entity.Voucher{}
	for _, v := range r.s.vouchers {
		if filter.StudentID != "" && v.StudentID != filter.StudentID {
			continue
		}
		if filter.ClassID != "" && v.ClassID != filter.ClassID {
			continue
		}
		if filter.Month != "" && v.Month != filter.Month {
			continue
		}
		v := v
		out = append(out, &v)
	}
	sortByCreated(out, func(a, b *entity.Voucher) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.VoucherNumber < b.VoucherNumber
	})
	return out, nil
}

func (r voucherRepo) UpdateStatus(ctx context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	v, ok := r.s.vouchers[id]
	if !ok {
		return fmt.Errorf("voucher %s not found", id)
	}
	v.Status = status
	r.s.vouchers[id] = v
	return nil
}

func (r voucherRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.vouchers, id)
	return nil
}
