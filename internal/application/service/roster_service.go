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

// ClassInput is the admin payload for registering a class
type ClassInput struct {
	ID    string `json:"id" validate:"max=64"`
	Name  string `json:"name" validate:"required,max=128"`
	Grade string `json:"grade" validate:"required,max=64"`
}

// StudentInput is the admin payload for registering a student.
// Grade defaults to the class grade.
type StudentInput struct {
	ID         string `json:"id" validate:"max=64"`
	Name       string `json:"name" validate:"required,max=128"`
	RollNumber string `json:"rollNumber" validate:"max=32"`
	ClassID    string `json:"classId" validate:"required,max=64"`
	Grade      string `json:"grade" validate:"max=64"`
	ParentID   string `json:"parentId" validate:"max=64"`
}

// RosterService manages the classes and students vouchers are issued to
type RosterService interface {
	CreateClass(ctx context.Context, caller *entity.Caller, input ClassInput) (*entity.Class, error)
	ListClasses(ctx context.Context, caller *entity.Caller) ([]*entity.Class, error)
	CreateStudent(ctx context.Context, caller *entity.Caller, input StudentInput) (*entity.Student, error)
	ListStudents(ctx context.Context, caller *entity.Caller, classID string) ([]*entity.Student, error)
}

type rosterServiceImpl struct {
	classRepo   port.ClassRepository
	studentRepo port.StudentRepository
	logger      Logger
}

// NewRosterService creates a new RosterService
func NewRosterService(classRepo port.ClassRepository, studentRepo port.StudentRepository, logger Logger) RosterService {
	return &rosterServiceImpl{
		classRepo:   classRepo,
		studentRepo: studentRepo,
		logger:      logger,
	}
}

func (s *rosterServiceImpl) CreateClass(ctx context.Context, caller *entity.Caller, input ClassInput) (*entity.Class, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	input.ID = strings.TrimSpace(input.ID)
	input.Name = utils.SanitizeString(input.Name)
	input.Grade = utils.SanitizeString(input.Grade)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("invalid class", err.Error())
	}

	class := &entity.Class{
		ID:        input.ID,
		Name:      input.Name,
		Grade:     input.Grade,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.classRepo.Create(ctx, class); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, conflict("class %q already exists", input.ID)
		}
		return nil, fmt.Errorf("create class: %w", err)
	}

	s.logger.Info("Class created", "class_id", class.ID, "grade", class.Grade)
	return class, nil
}

func (s *rosterServiceImpl) ListClasses(ctx context.Context, caller *entity.Caller) ([]*entity.Class, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	classes, err := s.classRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

func (s *rosterServiceImpl) CreateStudent(ctx context.Context, caller *entity.Caller, input StudentInput) (*entity.Student, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	input.ID = strings.TrimSpace(input.ID)
	input.Name = utils.SanitizeString(input.Name)
	input.RollNumber = utils.SanitizeString(input.RollNumber)
	input.ClassID = strings.TrimSpace(input.ClassID)
	input.Grade = utils.SanitizeString(input.Grade)
	input.ParentID = strings.TrimSpace(input.ParentID)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("invalid student", err.Error())
	}

	class, err := s.classRepo.GetByID(ctx, input.ClassID)
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	if class == nil {
		return nil, notFound("class", input.ClassID)
	}

	student := &entity.Student{
		ID:         input.ID,
		Name:       input.Name,
		RollNumber: input.RollNumber,
		ClassID:    class.ID,
		Grade:      input.Grade,
		Role:       entity.RoleStudent,
		ParentID:   input.ParentID,
		CreatedAt:  time.Now().UTC(),
	}
	if student.Grade == "" {
		student.Grade = class.Grade
	}

	if err := s.studentRepo.Create(ctx, student); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, conflict("student %q already exists", input.ID)
		}
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.logger.Info("Student created", "student_id", student.ID, "class_id", student.ClassID)
	return student, nil
}

func (s *rosterServiceImpl) ListStudents(ctx context.Context, caller *entity.Caller, classID string) ([]*entity.Student, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, NewValidationError("classId is required")
	}
	students, err := s.studentRepo.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}
