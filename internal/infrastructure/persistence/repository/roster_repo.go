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

// ClassRepository implements port.ClassRepository
type ClassRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClassRepository creates a new class repository
func NewClassRepository(db *sql.DB, logger *zap.Logger) port.ClassRepository {
	return &ClassRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new class record
func (r *ClassRepository) Create(ctx context.Context, class *entity.Class) error {
	ensureID(&class.ID)
	query := `INSERT INTO classes (id, name, grade, created_at) VALUES (?, ?, ?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		class.ID,
		class.Name,
		class.Grade,
		class.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create class", zap.String("name", class.Name), zap.Error(err))
		return wrapInsertError(err, "class "+class.ID)
	}
	return nil
}

// GetByID retrieves a class by ID
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*entity.Class, error) {
	query := `SELECT id, name, grade, created_at FROM classes WHERE id = ?`

	var class entity.Class
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&class.ID,
		&class.Name,
		&class.Grade,
		&class.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get class", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return &class, nil
}

// List returns all classes ordered by name
func (r *ClassRepository) List(ctx context.Context) ([]*entity.Class, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, grade, created_at FROM classes ORDER BY name, id`)
	if err != nil {
		r.logger.Error("Failed to list classes", zap.Error(err))
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	out := []*entity.Class{}
	for rows.Next() {
		var class entity.Class
		if err := rows.Scan(&class.ID, &class.Name, &class.Grade, &class.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		out = append(out, &class)
	}
	return out, rows.Err()
}

// StudentRepository implements port.StudentRepository
type StudentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *sql.DB, logger *zap.Logger) port.StudentRepository {
	return &StudentRepository{
		db:     db,
		logger: logger,
	}
}

const studentColumns = `id, name, roll_number, class_id, grade, role, parent_id, created_at`

// Create creates a new student record
func (r *StudentRepository) Create(ctx context.Context, student *entity.Student) error {
	ensureID(&student.ID)
	query := `INSERT INTO students (` + studentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		student.ID,
		student.Name,
		student.RollNumber,
		student.ClassID,
		student.Grade,
		student.Role,
		student.ParentID,
		student.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create student", zap.String("name", student.Name), zap.Error(err))
		return wrapInsertError(err, "student "+student.ID)
	}
	return nil
}

// GetByID retrieves a student by ID regardless of role
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*entity.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ?`

	student, err := scanStudent(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get student", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return student, nil
}

// ListByClass returns the students of a class ordered by roll number
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]*entity.Student, error) {
	return r.list(ctx, "class_id", classID)
}

// ListByGrade returns the students of a grade ordered by roll number
func (r *StudentRepository) ListByGrade(ctx context.Context, grade string) ([]*entity.Student, error) {
	return r.list(ctx, "grade", grade)
}

func (r *StudentRepository) list(ctx context.Context, column, value string) ([]*entity.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students
		WHERE ` + column + ` = ? AND role = ?
		ORDER BY roll_number, id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, value, entity.RoleStudent)
	if err != nil {
		r.logger.Error("Failed to list students", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	out := []*entity.Student{}
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, student)
	}
	return out, rows.Err()
}

func scanStudent(row rowScanner) (*entity.Student, error) {
	var s entity.Student
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.RollNumber,
		&s.ClassID,
		&s.Grade,
		&s.Role,
		&s.ParentID,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Verify interface compliance
var (
	_ port.ClassRepository   = (*ClassRepository)(nil)
	_ port.StudentRepository = (*StudentRepository)(nil)
)
