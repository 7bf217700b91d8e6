package memory

import (
	"context"
	"fmt"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

type classRepo struct{ s *Store }

func (r classRepo) Create(ctx context.Context, class *entity.Class) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	class.ID = newID(class.ID)
	if _, exists := r.s.classes[class.ID]; exists {
		return fmt.Errorf("%w: class %s", port.ErrDuplicate, class.ID)
	}
	r.s.classes[class.ID] = *class
	return nil
}

func (r classRepo) GetByID(ctx context.Context, id string) (*entity.Class, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r classRepo) List(ctx context.Context) ([]*entity.Class, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.Class, 0, len(r.s.classes))
	for _, c := range r.s.classes {
		c := c
		out = append(out, &c)
	}
	sortByCreated(out, func(a, b *entity.Class) bool { return a.Name < b.Name })
	return out, nil
}

type studentRepo struct{ s *Store }

func (r studentRepo) Create(ctx context.Context, student *entity.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	student.ID = newID(student.ID)
	if _, exists := r.s.students[student.ID]; exists {
		return fmt.Errorf("%w: student %s", port.ErrDuplicate, student.ID)
	}
	r.s.students[student.ID] = *student
	return nil
}

func (r studentRepo) GetByID(ctx context.Context, id string) (*entity.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.students[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r studentRepo) ListByClass(ctx context.Context, classID string) ([]*entity.Student, error) {
	return r.list(func(st entity.Student) bool { return st.ClassID == classID }), nil
}

func (r studentRepo) ListByGrade(ctx context.Context, grade string) ([]*entity.Student, error) {
	return r.list(func(st entity.Student) bool { return st.Grade == grade }), nil
}

func (r studentRepo) list(match func(entity.Student) bool) []*entity.Student {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*entity.Student{}
	for _, st := range r.s.students {
		if st.Role == entity.RoleStudent && match(st) {
			st := st
			out = append(out, &st)
		}
	}
	sortByCreated(out, func(a, b *entity.Student) bool {
		if a.RollNumber != b.RollNumber {
			return a.RollNumber < b.RollNumber
		}
		return a.ID < b.ID
	})
	return out
}
