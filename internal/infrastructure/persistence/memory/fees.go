package memory

import (
	"context"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

type feeStructureRepo struct{ s *Store }

func (r feeStructureRepo) Create(ctx context.Context, fs *entity.FeeStructure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.gradeTaken(fs.Grade, "") {
		return fmt.Errorf("%w: fee structure grade %s", port.ErrDuplicate, fs.Grade)
	}
	fs.ID = newID(fs.ID)
	r.s.feeStructures[fs.ID] = *fs
	return nil
}

func (r feeStructureRepo) gradeTaken(grade, exceptID string) bool {
	for id, existing := range r.s.feeStructures {
		if existing.Grade == grade && id != exceptID {
			return true
		}
	}
	return false
}

func (r feeStructureRepo) GetByID(ctx context.Context, id string) (*entity.FeeStructure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	fs, ok := r.s.feeStructures[id]
	if !ok {
		return nil, nil
	}
	return &fs, nil
}

func (r feeStructureRepo) GetByGrade(ctx context.Context, grade string) (*entity.FeeStructure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, fs := range r.s.feeStructures {
		if fs.Grade == grade {
			fs := fs
			return &fs, nil
		}
	}
	return nil, nil
}

func (r feeStructureRepo) List(ctx context.Context) ([]*entity.FeeStructure, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.FeeStructure, 0, len(r.s.feeStructures))
	for _, fs := range r.s.feeStructures {
		fs := fs
		out = append(out, &fs)
	}
	sortByCreated(out, func(a, b *entity.FeeStructure) bool { return a.Grade < b.Grade })
	return out, nil
}

func (r feeStructureRepo) Update(ctx context.Context, fs *entity.FeeStructure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.feeStructures[fs.ID]; !ok {
		return fmt.Errorf("fee structure %s not found", fs.ID)
	}
	if r.gradeTaken(fs.Grade, fs.ID) {
		return fmt.Errorf("%w: fee structure grade %s", port.ErrDuplicate, fs.Grade)
	}
	r.s.feeStructures[fs.ID] = *fs
	return nil
}

func (r feeStructureRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.feeStructures, id)
	return nil
}
