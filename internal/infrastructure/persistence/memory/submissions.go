package memory

import (
	"context"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

type submissionRepo struct{ s *Store }

func (r submissionRepo) Create(ctx context.Context, sub *entity.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if sub.IsActive() {
		for _, existing := range r.s.submissions {
			if existing.VoucherID == sub.VoucherID && existing.IsActive() {
				return fmt.Errorf("%w: active submission for voucher %s", port.ErrDuplicate, sub.VoucherID)
			}
		}
	}
	sub.ID = newID(sub.ID)
	r.s.submissions[sub.ID] = *sub
	return nil
}

func (r submissionRepo) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, ok := r.s.submissions[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r submissionRepo) GetActiveByVoucherID(ctx context.Context, voucherID string) (*entity.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, sub := range r.s.submissions {
		if sub.VoucherID == voucherID && sub.IsActive() {
			sub := sub
			return &sub, nil
		}
	}
	return nil, nil
}

func (r submissionRepo) List(ctx context.Context, filter port.SubmissionFilter) ([]*entity.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entity.Submission{}
	for _, sub := range r.s.submissions {
		if filter.VoucherID != "" && sub.VoucherID != filter.VoucherID {
			continue
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && sub.Status != filter.Status {
			continue
		}
		sub := sub
		out = append(out, &sub)
	}
	sortByCreated(out, func(a, b *entity.Submission) bool { return a.SubmissionDate.After(b.SubmissionDate) })
	return out, nil
}

func (r submissionRepo) PendingVoucherIDs(ctx context.Context, voucherIDs []string) (map[string]bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[string]bool, len(voucherIDs))
	for _, id := range voucherIDs {
		wanted[id] = true
	}
	out := make(map[string]bool)
	for _, sub := range r.s.submissions {
		if sub.Status == entity.SubmissionStatusPending && wanted[sub.VoucherID] {
			out[sub.VoucherID] = true
		}
	}
	return out, nil
}

func (r submissionRepo) UpdateDecision(ctx context.Context, sub *entity.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.submissions[sub.ID]
	if !ok {
		return fmt.Errorf("submission %s not found", sub.ID)
	}
	if current.Status != entity.SubmissionStatusPending {
		return fmt.Errorf("%w: submission %s is %s", port.ErrAlreadyDecided, sub.ID, current.Status)
	}
	r.s.submissions[sub.ID] = *sub
	return nil
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(ctx context.Context, h *entity.VoucherHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h.ID = newID(h.ID)
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r historyRepo) GetByVoucherID(ctx context.Context, voucherID string) ([]*entity.VoucherHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entity.VoucherHistory{}
	for _, h := range r.s.history {
		if h.VoucherID == voucherID {
			h := h
			out = append(out, &h)
		}
	}
	return out, nil
}
