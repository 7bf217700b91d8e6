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

// FeeStructureRepository implements port.FeeStructureRepository
type FeeStructureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFeeStructureRepository creates a new fee structure repository
func NewFeeStructureRepository(db *sql.DB, logger *zap.Logger) port.FeeStructureRepository {
	return &FeeStructureRepository{
		db:     db,
		logger: logger,
	}
}

const feeStructureColumns = `id, grade, tuition_fee, other_fee, total_fee, due_date, created_at, updated_at`

// Create inserts a fee structure; a second structure for the same grade wraps port.ErrDuplicate
func (r *FeeStructureRepository) Create(ctx context.Context, fs *entity.FeeStructure) error {
	ensureID(&fs.ID)
	query := `INSERT INTO fee_structures (` + feeStructureColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		fs.ID,
		fs.Grade,
		fs.TuitionFee,
		fs.OtherFee,
		fs.TotalFee,
		fs.DueDate,
		fs.CreatedAt.UTC(),
		fs.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create fee structure", zap.String("grade", fs.Grade), zap.Error(err))
		return wrapInsertError(err, "fee structure for grade "+fs.Grade)
	}
	return nil
}

// GetByID retrieves a fee structure by ID
func (r *FeeStructureRepository) GetByID(ctx context.Context, id string) (*entity.FeeStructure, error) {
	return r.getOne(ctx, "id", id)
}

// GetByGrade retrieves the fee structure of a grade
func (r *FeeStructureRepository) GetByGrade(ctx context.Context, grade string) (*entity.FeeStructure, error) {
	return r.getOne(ctx, "grade", grade)
}

func (r *FeeStructureRepository) getOne(ctx context.Context, column, value string) (*entity.FeeStructure, error) {
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures WHERE ` + column + ` = ?`

	fs, err := scanFeeStructure(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get fee structure", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get fee structure: %w", err)
	}
	return fs, nil
}

// List returns every fee structure ordered by grade
func (r *FeeStructureRepository) List(ctx context.Context) ([]*entity.FeeStructure, error) {
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures ORDER BY grade`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list fee structures", zap.Error(err))
		return nil, fmt.Errorf("failed to list fee structures: %w", err)
	}
	defer rows.Close()

	out := []*entity.FeeStructure{}
	for rows.Next() {
		fs, err := scanFeeStructure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee structure: %w", err)
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// Update overwrites the fee amounts, grade and due date of an existing structure
func (r *FeeStructureRepository) Update(ctx context.Context, fs *entity.FeeStructure) error {
	query := `
		UPDATE fee_structures
		SET grade = ?, tuition_fee = ?, other_fee = ?, total_fee = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		fs.Grade,
		fs.TuitionFee,
		fs.OtherFee,
		fs.TotalFee,
		fs.DueDate,
		fs.UpdatedAt.UTC(),
		fs.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update fee structure", zap.String("id", fs.ID), zap.Error(err))
		return wrapInsertError(err, "fee structure for grade "+fs.Grade)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("fee structure %s not found", fs.ID)
	}
	return nil
}

// Delete removes a fee structure
func (r *FeeStructureRepository) Delete(ctx context.Context, id string) error {
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM fee_structures WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete fee structure", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete fee structure: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeeStructure(row rowScanner) (*entity.FeeStructure, error) {
	var fs entity.FeeStructure
	err := row.Scan(
		&fs.ID,
		&fs.Grade,
		&fs.TuitionFee,
		&fs.OtherFee,
		&fs.TotalFee,
		&fs.DueDate,
		&fs.CreatedAt,
		&fs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &fs, nil
}

// Verify interface compliance
var _ port.FeeStructureRepository = (*FeeStructureRepository)(nil)
