package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/pkg/utils"
)

// FeeDefaults is the structure synthesized for a grade that has none at issuance time
type FeeDefaults struct {
	TuitionFee float64
	OtherFee   float64
	DueDate    string
}

// FeeStructureInput is the admin payload for creating or updating a fee structure
type FeeStructureInput struct {
	ID         string   `json:"id"`
	Grade      string   `json:"grade" validate:"required,max=64"`
	TuitionFee float64  `json:"tuitionFee" validate:"gte=0"`
	OtherFee   float64  `json:"otherFee" validate:"gte=0"`
	TotalFee   *float64 `json:"totalFee" validate:"omitempty,gte=0"`
	DueDate    string   `json:"dueDate" validate:"max=128"`
}

// FeeStructureService manages per-grade fee structures
type FeeStructureService interface {
	List(ctx context.Context, caller *entity.Caller, grade string) ([]*entity.FeeStructure, error)
	Create(ctx context.Context, caller *entity.Caller, input FeeStructureInput) (*entity.FeeStructure, error)
	Update(ctx context.Context, caller *entity.Caller, input FeeStructureInput) (*entity.FeeStructure, error)
	Delete(ctx context.Context, caller *entity.Caller, id string) error

	// Resolve returns the structure for grade, creating the default one when
	// none exists. created is true only when this call stored the default.
	Resolve(ctx context.Context, grade string) (fs *entity.FeeStructure, created bool, err error)
}

type feeStructureServiceImpl struct {
	repo     port.FeeStructureRepository
	defaults FeeDefaults
	logger   Logger
	now      func() time.Time
}

// NewFeeStructureService creates a new FeeStructureService
func NewFeeStructureService(repo port.FeeStructureRepository, defaults FeeDefaults, logger Logger) FeeStructureService {
	return &feeStructureServiceImpl{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *feeStructureServiceImpl) List(ctx context.Context, caller *entity.Caller, grade string) ([]*entity.FeeStructure, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}

	grade = strings.TrimSpace(grade)
	if grade != "" {
		fs, err := s.repo.GetByGrade(ctx, grade)
		if err != nil {
			return nil, fmt.Errorf("get fee structure by grade: %w", err)
		}
		if fs == nil {
			return []*entity.FeeStructure{}, nil
		}
		return []*entity.FeeStructure{fs}, nil
	}

	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return list, nil
}

func (s *feeStructureServiceImpl) Create(ctx context.Context, caller *entity.Caller, input FeeStructureInput) (*entity.FeeStructure, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	input.Grade = utils.SanitizeString(input.Grade)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("invalid fee structure", err.Error())
	}

	now := s.now().UTC()
	fs := &entity.FeeStructure{
		Grade:     input.Grade,
		DueDate:   strings.TrimSpace(input.DueDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFees(fs, input)

	if err := s.repo.Create(ctx, fs); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, conflict("fee structure for grade %q already exists", fs.Grade)
		}
		s.logger.Error("Failed to create fee structure", "error", err, "grade", fs.Grade)
		return nil, fmt.Errorf("create fee structure: %w", err)
	}

	s.logger.Info("Fee structure created", "id", fs.ID, "grade", fs.Grade, "total_fee", fs.TotalFee)
	return fs, nil
}

func (s *feeStructureServiceImpl) Update(ctx context.Context, caller *entity.Caller, input FeeStructureInput) (*entity.FeeStructure, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	input.ID = strings.TrimSpace(input.ID)
	if input.ID == "" {
		return nil, NewValidationError("id is required")
	}
	input.Grade = utils.SanitizeString(input.Grade)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("invalid fee structure", err.Error())
	}

	fs, err := s.repo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, fmt.Errorf("get fee structure: %w", err)
	}
	if fs == nil {
		return nil, notFound("fee structure", input.ID)
	}

	fs.Grade = input.Grade
	fs.DueDate = strings.TrimSpace(input.DueDate)
	fs.UpdatedAt = s.now().UTC()
	applyFees(fs, input)

	if err := s.repo.Update(ctx, fs); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, conflict("fee structure for grade %q already exists", fs.Grade)
		}
		return nil, fmt.Errorf("update fee structure: %w", err)
	}

	s.logger.Info("Fee structure updated", "id", fs.ID, "grade", fs.Grade)
	return fs, nil
}

func (s *feeStructureServiceImpl) Delete(ctx context.Context, caller *entity.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return NewValidationError("id is required")
	}

	fs, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get fee structure: %w", err)
	}
	if fs == nil {
		return notFound("fee structure", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete fee structure: %w", err)
	}

	s.logger.Info("Fee structure deleted", "id", id, "grade", fs.Grade)
	return nil
}

func (s *feeStructureServiceImpl) Resolve(ctx context.Context, grade string) (*entity.FeeStructure, bool, error) {
	fs, err := s.repo.GetByGrade(ctx, grade)
	if err != nil {
		return nil, false, fmt.Errorf("get fee structure by grade: %w", err)
	}
	if fs != nil {
		return fs, false, nil
	}

	now := s.now().UTC()
	fs = &entity.FeeStructure{
		Grade:      grade,
		TuitionFee: s.defaults.TuitionFee,
		OtherFee:   s.defaults.OtherFee,
		TotalFee:   s.defaults.TuitionFee + s.defaults.OtherFee,
		DueDate:    s.defaults.DueDate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, fs); err != nil {
		if !errors.Is(err, port.ErrDuplicate) {
			s.logger.Error("Failed to create default fee structure", "error", err, "grade", grade)
			return nil, false, fmt.Errorf("create default fee structure: %w", err)
		}
		// Another issuer stored one first.
		existing, err := s.repo.GetByGrade(ctx, grade)
		if err != nil {
			return nil, false, fmt.Errorf("get fee structure by grade: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("fee structure for grade %q vanished after duplicate insert", grade)
		}
		return existing, false, nil
	}

	s.logger.Info("Default fee structure created", "id", fs.ID, "grade", grade, "total_fee", fs.TotalFee)
	return fs, true, nil
}

func applyFees(fs *entity.FeeStructure, input FeeStructureInput) {
	fs.TuitionFee = input.TuitionFee
	fs.OtherFee = input.OtherFee
	if input.TotalFee != nil && *input.TotalFee > 0 {
		fs.TotalFee = *input.TotalFee
	} else {
		fs.TotalFee = input.TuitionFee + input.OtherFee
	}
}
