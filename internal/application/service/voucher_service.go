package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/domain/event"
	"github.com/garyjia/school-fees/internal/domain/period"
)

// IssueRequest asks for vouchers for every student of a class for one month
type IssueRequest struct {
	ClassID string
	Month   string
	Message string
}

// IssueResult lists the vouchers created by one issuance call
type IssueResult struct {
	Vouchers            []*entity.Voucher
	Skipped             int
	FeeStructure        *entity.FeeStructure
	DefaultFeeStructure bool
}

// Message summarizes the result for the caller
func (r *IssueResult) Message() string {
	msg := fmt.Sprintf("Successfully created %d vouchers", len(r.Vouchers))
	if r.DefaultFeeStructure {
		msg += " with default fee structure"
	}
	return msg
}

// VoucherQuery filters a voucher listing. Which fields a caller may set
// depends on their role.
type VoucherQuery struct {
	StudentID string
	ClassID   string
	Month     string
}

// VoucherView is a voucher with its derived display status
type VoucherView struct {
	Voucher       *entity.Voucher
	DisplayStatus string
}

// VoucherService issues, reads and deletes vouchers
type VoucherService interface {
	Issue(ctx context.Context, caller *entity.Caller, req IssueRequest) (*IssueResult, error)
	List(ctx context.Context, caller *entity.Caller, query VoucherQuery) ([]*VoucherView, error)
	Get(ctx context.Context, caller *entity.Caller, id string) (*VoucherView, error)
	Delete(ctx context.Context, caller *entity.Caller, id string) error
	History(ctx context.Context, caller *entity.Caller, id string) ([]*entity.VoucherHistory, error)
	Export(ctx context.Context, caller *entity.Caller, classID, month string) ([]byte, error)
}

type voucherServiceImpl struct {
	classRepo      port.ClassRepository
	studentRepo    port.StudentRepository
	voucherRepo    port.VoucherRepository
	submissionRepo port.SubmissionRepository
	historyRepo    port.HistoryRepository
	feeStructures  FeeStructureService
	exporter       port.VoucherExporter
	dispatcher     dispatcher.Dispatcher
	logger         Logger
	now            func() time.Time
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(
	classRepo port.ClassRepository,
	studentRepo port.StudentRepository,
	voucherRepo port.VoucherRepository,
	submissionRepo port.SubmissionRepository,
	historyRepo port.HistoryRepository,
	feeStructures FeeStructureService,
	exporter port.VoucherExporter,
	d dispatcher.Dispatcher,
	logger Logger,
) VoucherService {
	return &voucherServiceImpl{
		classRepo:      classRepo,
		studentRepo:    studentRepo,
		voucherRepo:    voucherRepo,
		submissionRepo: submissionRepo,
		historyRepo:    historyRepo,
		feeStructures:  feeStructures,
		exporter:       exporter,
		dispatcher:     d,
		logger:         logger,
		now:            time.Now,
	}
}

// Issue creates one Pending voucher per student of the class who has none
// for the month yet. Existing vouchers are left untouched.
func (s *voucherServiceImpl) Issue(ctx context.Context, caller *entity.Caller, req IssueRequest) (*IssueResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	classID := strings.TrimSpace(req.ClassID)
	if classID == "" {
		return nil, NewValidationError("classId is required")
	}
	p, err := period.Parse(req.Month)
	if err != nil {
		return nil, NewValidationError("invalid month", err.Error())
	}

	class, err := s.classRepo.GetByID(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}

	students, err := s.studentRepo.ListByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	if len(students) == 0 {
		if class == nil {
			return nil, &NotFoundError{Resource: "class", ID: classID}
		}
		students, err = s.studentRepo.ListByGrade(ctx, class.Grade)
		if err != nil {
			return nil, fmt.Errorf("list students by grade: %w", err)
		}
	}
	if len(students) == 0 {
		return nil, &NotFoundError{Resource: "student", ID: classID, Message: "no students found for this class"}
	}

	grade, className := students[0].Grade, ""
	if class != nil {
		grade, className = class.Grade, class.Name
	}

	fs, created, err := s.feeStructures.Resolve(ctx, grade)
	if err != nil {
		return nil, err
	}

	result := &IssueResult{
		Vouchers:            []*entity.Voucher{},
		FeeStructure:        fs,
		DefaultFeeStructure: created,
	}
	batchID := uuid.NewString()
	now := s.now().UTC()
	amount := fs.Amount()
	dueDate := p.DueDate()
	message := strings.TrimSpace(req.Message)

	for _, student := range students {
		existing, err := s.voucherRepo.FindByStudentAndMonth(ctx, student.ID, p.Key)
		if err != nil {
			return nil, fmt.Errorf("check existing voucher: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		v := &entity.Voucher{
			StudentID:     student.ID,
			StudentName:   student.Name,
			RollNumber:    student.RollNumber,
			ClassID:       classID,
			ClassName:     className,
			Month:         p.Key,
			Amount:        amount,
			IssueDate:     now,
			DueDate:       dueDate,
			Status:        entity.VoucherStatusPending,
			VoucherNumber: p.VoucherNumber(student.VoucherSuffix()),
			Message:       message,
			CreatedAt:     now,
			CreatedBy:     caller.ID,
		}
		if err := s.voucherRepo.Create(ctx, v); err != nil {
			if errors.Is(err, port.ErrDuplicate) {
				result.Skipped++
				continue
			}
			s.logger.Error("Failed to create voucher", "error", err, "student_id", student.ID, "month", p.Key)
			return nil, fmt.Errorf("create voucher: %w", err)
		}
		result.Vouchers = append(result.Vouchers, v)

		publish(ctx, s.dispatcher, s.logger, event.NewEvent(event.TypeVoucherIssued, v.ID, caller.ID, map[string]interface{}{
			event.KeyNewStatus: v.Status,
			event.KeyNote:      v.VoucherNumber,
		}).WithCorrelation(batchID))
	}

	s.logger.Info("Vouchers issued",
		"class_id", classID,
		"month", p.Key,
		"created", len(result.Vouchers),
		"skipped", result.Skipped,
		"default_fee_structure", created,
	)
	return result, nil
}

func (s *voucherServiceImpl) List(ctx context.Context, caller *entity.Caller, query VoucherQuery) ([]*VoucherView, error) {
	filter, err := s.authorizeQuery(ctx, caller, query)
	if err != nil {
		return nil, err
	}

	vouchers, err := s.voucherRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	return s.views(ctx, vouchers)
}

func (s *voucherServiceImpl) authorizeQuery(ctx context.Context, caller *entity.Caller, q VoucherQuery) (port.VoucherFilter, error) {
	if err := requireCaller(caller); err != nil {
		return port.VoucherFilter{}, err
	}
	q.StudentID = strings.TrimSpace(q.StudentID)
	q.ClassID = strings.TrimSpace(q.ClassID)
	q.Month = strings.TrimSpace(q.Month)

	switch caller.Role {
	case entity.RoleAdmin:
		if q.Month != "" && q.ClassID == "" && q.StudentID == "" {
			return port.VoucherFilter{}, ErrForbidden
		}
		return port.VoucherFilter{StudentID: q.StudentID, ClassID: q.ClassID, Month: q.Month}, nil

	case entity.RoleStudent:
		if q.ClassID != "" || (q.StudentID != "" && q.StudentID != caller.ID) {
			return port.VoucherFilter{}, ErrForbidden
		}
		return port.VoucherFilter{StudentID: caller.ID, Month: q.Month}, nil

	case entity.RoleParent:
		if q.ClassID != "" || q.StudentID == "" {
			return port.VoucherFilter{}, ErrForbidden
		}
		if err := s.requireGuardian(ctx, caller, q.StudentID); err != nil {
			return port.VoucherFilter{}, err
		}
		return port.VoucherFilter{StudentID: q.StudentID, Month: q.Month}, nil
	}

	return port.VoucherFilter{}, ErrForbidden
}

func (s *voucherServiceImpl) requireGuardian(ctx context.Context, caller *entity.Caller, studentID string) error {
	student, err := s.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if student == nil || student.ParentID == "" || student.ParentID != caller.ID {
		return ErrForbidden
	}
	return nil
}

func (s *voucherServiceImpl) canRead(ctx context.Context, caller *entity.Caller, v *entity.Voucher) error {
	switch {
	case caller.IsAdmin():
		return nil
	case caller.IsStudent() && v.StudentID == caller.ID:
		return nil
	case caller.IsParent():
		return s.requireGuardian(ctx, caller, v.StudentID)
	}
	return ErrForbidden
}

func (s *voucherServiceImpl) Get(ctx context.Context, caller *entity.Caller, id string) (*VoucherView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, caller, v); err != nil {
		return nil, err
	}

	views, err := s.views(ctx, []*entity.Voucher{v})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *voucherServiceImpl) Delete(ctx context.Context, caller *entity.Caller, id string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if err := s.voucherRepo.Delete(ctx, v.ID); err != nil {
		s.logger.Error("Failed to delete voucher", "error", err, "voucher_id", v.ID)
		return fmt.Errorf("delete voucher: %w", err)
	}

	s.logger.Info("Voucher deleted", "voucher_id", v.ID, "status", v.Status, "deleted_by", caller.ID)
	publish(ctx, s.dispatcher, s.logger, event.NewEvent(event.TypeVoucherDeleted, v.ID, caller.ID, map[string]interface{}{
		event.KeyPreviousStatus: v.Status,
		event.KeyNote:           v.VoucherNumber,
	}))
	return nil
}

func (s *voucherServiceImpl) History(ctx context.Context, caller *entity.Caller, id string) ([]*entity.VoucherHistory, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewValidationError("id is required")
	}

	entries, err := s.historyRepo.GetByVoucherID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get voucher history: %w", err)
	}
	if len(entries) == 0 {
		if _, err := s.load(ctx, id); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *voucherServiceImpl) Export(ctx context.Context, caller *entity.Caller, classID, month string) ([]byte, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	classID = strings.TrimSpace(classID)
	if classID == "" {
		return nil, NewValidationError("classId is required")
	}
	p, err := period.Parse(month)
	if err != nil {
		return nil, NewValidationError("invalid month", err.Error())
	}

	vouchers, err := s.voucherRepo.List(ctx, port.VoucherFilter{ClassID: classID, Month: p.Key})
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	views, err := s.views(ctx, vouchers)
	if err != nil {
		return nil, err
	}

	rows := make([]port.ExportRow, len(views))
	for i, view := range views {
		rows[i] = port.ExportRow{Voucher: view.Voucher, DisplayStatus: view.DisplayStatus}
	}

	content, err := s.exporter.Export(ctx, fmt.Sprintf("Vouchers %s %s", classID, p.Key), rows)
	if err != nil {
		s.logger.Error("Failed to export vouchers", "error", err, "class_id", classID, "month", p.Key)
		return nil, fmt.Errorf("export vouchers: %w", err)
	}
	return content, nil
}

func (s *voucherServiceImpl) load(ctx context.Context, id string) (*entity.Voucher, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewValidationError("id is required")
	}
	v, err := s.voucherRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if v == nil {
		return nil, notFound("voucher", id)
	}
	return v, nil
}

func (s *voucherServiceImpl) views(ctx context.Context, vouchers []*entity.Voucher) ([]*VoucherView, error) {
	views := make([]*VoucherView, 0, len(vouchers))
	if len(vouchers) == 0 {
		return views, nil
	}

	var pendingIDs []string
	for _, v := range vouchers {
		if v.Status == entity.VoucherStatusPending {
			pendingIDs = append(pendingIDs, v.ID)
		}
	}
	awaiting := map[string]bool{}
	if len(pendingIDs) > 0 {
		var err error
		awaiting, err = s.submissionRepo.PendingVoucherIDs(ctx, pendingIDs)
		if err != nil {
			return nil, fmt.Errorf("find pending submissions: %w", err)
		}
	}

	now := s.now()
	for _, v := range vouchers {
		views = append(views, &VoucherView{
			Voucher:       v,
			DisplayStatus: v.DisplayStatus(now, awaiting[v.ID]),
		})
	}
	return views, nil
}
