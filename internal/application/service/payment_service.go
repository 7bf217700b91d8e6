package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/domain/event"
	"github.com/garyjia/school-fees/internal/domain/workflow"
	"github.com/garyjia/school-fees/pkg/utils"
)

// SubmitProofRequest carries a student's payment proof upload
type SubmitProofRequest struct {
	VoucherID     string
	PaymentMethod string
	// PaymentDate is YYYY-MM-DD; empty means today
	PaymentDate string
	File        port.ProofFile
}

// VerifyRequest is an admin decision on a pending submission
type VerifyRequest struct {
	SubmissionID string
	Verify       bool
	Remarks      string
}

// VerifyResult holds both records after a decision
type VerifyResult struct {
	Submission *entity.Submission
	Voucher    *entity.Voucher
}

// SubmissionQuery filters a submission listing
type SubmissionQuery struct {
	VoucherID string
	Status    string
}

// ProofDownload is a stored payment proof
type ProofDownload struct {
	FileName    string
	ContentType string
	Content     []byte
}

// PaymentService handles proof submission and admin verification
type PaymentService interface {
	SubmitProof(ctx context.Context, caller *entity.Caller, req SubmitProofRequest) (*entity.Submission, error)
	Verify(ctx context.Context, caller *entity.Caller, req VerifyRequest) (*VerifyResult, error)
	ListSubmissions(ctx context.Context, caller *entity.Caller, query SubmissionQuery) ([]*entity.Submission, error)
	OpenProof(ctx context.Context, caller *entity.Caller, submissionID string) (*ProofDownload, error)
}

type paymentServiceImpl struct {
	voucherRepo    port.VoucherRepository
	submissionRepo port.SubmissionRepository
	txManager      port.TransactionManager
	storage        port.FileStorage
	inspector      port.ProofInspector
	dispatcher     dispatcher.Dispatcher
	logger         Logger
	now            func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	voucherRepo port.VoucherRepository,
	submissionRepo port.SubmissionRepository,
	txManager port.TransactionManager,
	storage port.FileStorage,
	inspector port.ProofInspector,
	d dispatcher.Dispatcher,
	logger Logger,
) PaymentService {
	return &paymentServiceImpl{
		voucherRepo:    voucherRepo,
		submissionRepo: submissionRepo,
		txManager:      txManager,
		storage:        storage,
		inspector:      inspector,
		dispatcher:     d,
		logger:         logger,
		now:            time.Now,
	}
}

// PreviewPath is where the downscaled JPEG preview of a submission's proof is stored
func PreviewPath(voucherID, submissionID string) string {
	return path.Join("proofs", voucherID, submissionID+"_preview.jpg")
}

func (s *paymentServiceImpl) SubmitProof(ctx context.Context, caller *entity.Caller, req SubmitProofRequest) (*entity.Submission, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsStudent() {
		return nil, ErrForbidden
	}

	voucherID := strings.TrimSpace(req.VoucherID)
	method := utils.SanitizeString(req.PaymentMethod)
	switch {
	case voucherID == "":
		return nil, NewValidationError("voucherId is required")
	case method == "":
		return nil, NewValidationError("paymentMethod is required")
	case len(method) > 64:
		return nil, NewValidationError("paymentMethod must be at most 64 characters")
	case len(req.File.Content) == 0:
		return nil, NewValidationError("payment proof file is required")
	}

	now := s.now().UTC()
	paymentDate := now
	if d := strings.TrimSpace(req.PaymentDate); d != "" {
		parsed, err := time.Parse(entity.DateLayout, d)
		if err != nil {
			return nil, NewValidationError("invalid paymentDate", "expected YYYY-MM-DD")
		}
		paymentDate = parsed
	}

	voucher, err := s.voucherRepo.GetByID(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if voucher == nil {
		return nil, notFound("voucher", voucherID)
	}
	if voucher.StudentID != caller.ID {
		return nil, ErrForbidden
	}

	machine, err := workflow.NewVoucherMachine(voucher.Status)
	if err != nil {
		return nil, fmt.Errorf("voucher %s: %w", voucher.ID, err)
	}
	if !machine.CanFire(workflow.TriggerSubmitProof) {
		return nil, conflict("voucher is %s and does not accept payment proof", voucher.Status)
	}

	active, err := s.submissionRepo.GetActiveByVoucherID(ctx, voucher.ID)
	if err != nil {
		return nil, fmt.Errorf("get active submission: %w", err)
	}
	if err := machine.Fire(workflow.WithActiveSubmission(ctx, active != nil), workflow.TriggerSubmitProof); err != nil {
		if active != nil {
			return nil, conflict("a payment submission for this voucher is already %s", strings.ToLower(active.Status))
		}
		return nil, conflict("voucher is %s and does not accept payment proof", voucher.Status)
	}

	report, err := s.inspector.Inspect(ctx, req.File)
	if err != nil {
		if errors.Is(err, port.ErrUnsupportedProof) {
			return nil, NewValidationError("invalid payment proof", err.Error())
		}
		return nil, fmt.Errorf("inspect payment proof: %w", err)
	}

	submission := &entity.Submission{
		ID:               uuid.NewString(),
		VoucherID:        voucher.ID,
		StudentID:        caller.ID,
		PaymentMethod:    method,
		ProofContentType: report.ContentType,
		ProofPages:       report.Pages,
		PaymentDate:      paymentDate,
		SubmissionDate:   now,
		Status:           entity.SubmissionStatusPending,
	}
	submission.PaymentProof = path.Join("proofs", voucher.ID, submission.ID+report.Extension)

	if err := s.storage.Save(ctx, submission.PaymentProof, req.File.Content); err != nil {
		s.logger.Error("Failed to store payment proof", "error", err, "voucher_id", voucher.ID)
		return nil, fmt.Errorf("store payment proof: %w", err)
	}
	var previewPath string
	if report.Preview != nil {
		previewPath = PreviewPath(voucher.ID, submission.ID)
		if err := s.storage.Save(ctx, previewPath, report.Preview); err != nil {
			s.logger.Error("Failed to store proof preview", "error", err, "submission_id", submission.ID)
			previewPath = ""
		}
	}

	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		s.discardProof(ctx, submission, previewPath)
		if errors.Is(err, port.ErrDuplicate) {
			return nil, conflict("a payment submission for this voucher is already pending")
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.logger.Info("Payment proof submitted",
		"submission_id", submission.ID,
		"voucher_id", voucher.ID,
		"student_id", caller.ID,
		"content_type", report.ContentType,
	)
	publish(ctx, s.dispatcher, s.logger, event.NewEvent(event.TypeProofSubmitted, voucher.ID, caller.ID, map[string]interface{}{
		event.KeyPreviousStatus: voucher.Status,
		event.KeyNewStatus:      machine.State().String(),
		event.KeySubmissionID:   submission.ID,
		event.KeyNote:           method,
	}))
	return submission, nil
}

// discardProof removes the stored proof and its preview after the
// submission could not be recorded
func (s *paymentServiceImpl) discardProof(ctx context.Context, submission *entity.Submission, previewPath string) {
	for _, p := range []string{submission.PaymentProof, previewPath} {
		if p == "" {
			continue
		}
		if err := s.storage.Delete(ctx, p); err != nil {
			s.logger.Error("Failed to remove orphaned proof", "error", err, "path", p)
		}
	}
}

// Verify applies an admin decision to a Pending submission and its voucher
// in one transaction.
func (s *paymentServiceImpl) Verify(ctx context.Context, caller *entity.Caller, req VerifyRequest) (*VerifyResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	submissionID := strings.TrimSpace(req.SubmissionID)
	if submissionID == "" {
		return nil, NewValidationError("submissionId is required")
	}

	trigger := workflow.DecisionTrigger(req.Verify)
	var result *VerifyResult
	var previousStatus string

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		submission, err := s.submissionRepo.GetByID(txCtx, submissionID)
		if err != nil {
			return fmt.Errorf("get submission: %w", err)
		}
		if submission == nil {
			return notFound("submission", submissionID)
		}

		subMachine, err := workflow.NewSubmissionMachine(submission.Status)
		if err != nil {
			return fmt.Errorf("submission %s: %w", submission.ID, err)
		}
		if err := subMachine.Fire(txCtx, trigger); err != nil {
			return conflict("submission has already been %s", strings.ToLower(submission.Status))
		}

		voucher, err := s.voucherRepo.GetByID(txCtx, submission.VoucherID)
		if err != nil {
			return fmt.Errorf("get voucher: %w", err)
		}
		if voucher == nil {
			return notFound("voucher", submission.VoucherID)
		}

		voucherMachine, err := workflow.NewVoucherMachine(voucher.Status)
		if err != nil {
			return fmt.Errorf("voucher %s: %w", voucher.ID, err)
		}
		if err := voucherMachine.Fire(txCtx, trigger); err != nil {
			return conflict("voucher is %s and cannot be %s", voucher.Status, strings.ToLower(subMachine.State().String()))
		}

		now := s.now().UTC()
		submission.Status = subMachine.State().String()
		submission.VerifiedBy = caller.ID
		submission.VerifiedAt = &now
		submission.Remarks = utils.SanitizeString(req.Remarks)
		if req.Verify {
			submission.ReceiptNumber = ReceiptNumber(now, submission.ID)
		}
		if err := s.submissionRepo.UpdateDecision(txCtx, submission); err != nil {
			if errors.Is(err, port.ErrAlreadyDecided) {
				return conflict("submission has already been decided")
			}
			return fmt.Errorf("update submission: %w", err)
		}

		previousStatus = voucher.Status
		voucher.Status = voucherMachine.State().String()
		if err := s.voucherRepo.UpdateStatus(txCtx, voucher.ID, voucher.Status); err != nil {
			return fmt.Errorf("update voucher status: %w", err)
		}

		result = &VerifyResult{Submission: submission, Voucher: voucher}
		return nil
	})
	if err != nil {
		var nf *NotFoundError
		var ce *ConflictError
		if !errors.As(err, &nf) && !errors.As(err, &ce) {
			s.logger.Error("Failed to apply payment decision", "error", err, "submission_id", submissionID)
		}
		return nil, err
	}

	evtType := event.TypePaymentRejected
	if req.Verify {
		evtType = event.TypePaymentVerified
	}
	s.logger.Info("Payment decision applied",
		"submission_id", result.Submission.ID,
		"voucher_id", result.Voucher.ID,
		"decision", result.Submission.Status,
		"voucher_status", result.Voucher.Status,
	)
	publish(ctx, s.dispatcher, s.logger, event.NewEvent(evtType, result.Voucher.ID, caller.ID, map[string]interface{}{
		event.KeyPreviousStatus: previousStatus,
		event.KeyNewStatus:      result.Voucher.Status,
		event.KeySubmissionID:   result.Submission.ID,
		event.KeyNote:           result.Submission.Remarks,
	}))
	return result, nil
}

var submissionStatuses = map[string]bool{
	entity.SubmissionStatusPending:  true,
	entity.SubmissionStatusVerified: true,
	entity.SubmissionStatusRejected: true,
}

func (s *paymentServiceImpl) ListSubmissions(ctx context.Context, caller *entity.Caller, query SubmissionQuery) ([]*entity.Submission, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	filter := port.SubmissionFilter{
		VoucherID: strings.TrimSpace(query.VoucherID),
		Status:    strings.TrimSpace(query.Status),
	}
	if filter.Status != "" && !submissionStatuses[filter.Status] {
		return nil, NewValidationError("invalid status", "expected Pending, Verified or Rejected")
	}

	switch caller.Role {
	case entity.RoleAdmin:
	case entity.RoleStudent:
		filter.StudentID = caller.ID
	default:
		return nil, ErrForbidden
	}

	submissions, err := s.submissionRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

func (s *paymentServiceImpl) OpenProof(ctx context.Context, caller *entity.Caller, submissionID string) (*ProofDownload, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return nil, NewValidationError("id is required")
	}

	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if submission == nil {
		return nil, notFound("submission", submissionID)
	}
	if !caller.IsAdmin() && !(caller.IsStudent() && submission.StudentID == caller.ID) {
		return nil, ErrForbidden
	}

	content, err := s.storage.Read(ctx, submission.PaymentProof)
	if err != nil {
		return nil, fmt.Errorf("read payment proof: %w", err)
	}
	return &ProofDownload{
		FileName:    path.Base(submission.PaymentProof),
		ContentType: submission.ProofContentType,
		Content:     content,
	}, nil
}

// ReceiptNumber formats R-{YYYYMMDD}-{first eight id characters, upper case}
func ReceiptNumber(at time.Time, submissionID string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(submissionID, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("R-%s-%s", at.Format("20060102"), suffix)
}
