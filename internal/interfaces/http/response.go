package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/school-fees/internal/application/service"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

const callerKey = "caller"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                     `json:"status"`
	Service    string                     `json:"service"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// VoucherResponse is a voucher with calendar dates as YYYY-MM-DD
type VoucherResponse struct {
	ID            string  `json:"id"`
	StudentID     string  `json:"studentId"`
	StudentName   string  `json:"studentName"`
	RollNumber    string  `json:"rollNumber"`
	ClassID       string  `json:"classId"`
	ClassName     string  `json:"className"`
	Month         string  `json:"month"`
	Amount        float64 `json:"amount"`
	IssueDate     string  `json:"issueDate"`
	DueDate       string  `json:"dueDate"`
	Status        string  `json:"status"`
	DisplayStatus string  `json:"displayStatus"`
	VoucherNumber string  `json:"voucherNumber"`
	Message       string  `json:"message,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	CreatedBy     string  `json:"createdBy"`
}

// SubmissionResponse is a payment submission
type SubmissionResponse struct {
	ID               string `json:"id"`
	VoucherID        string `json:"voucherId"`
	StudentID        string `json:"studentId"`
	PaymentMethod    string `json:"paymentMethod"`
	PaymentProof     string `json:"paymentProof"`
	ProofContentType string `json:"proofContentType"`
	ProofPages       int    `json:"proofPages,omitempty"`
	PaymentDate      string `json:"paymentDate"`
	SubmissionDate   string `json:"submissionDate"`
	Status           string `json:"status"`
	ReceiptNumber    string `json:"receiptNumber,omitempty"`
	VerifiedBy       string `json:"verifiedBy,omitempty"`
	VerifiedAt       string `json:"verifiedAt,omitempty"`
	Remarks          string `json:"remarks,omitempty"`
}

// HistoryResponse is one voucher history entry
type HistoryResponse struct {
	ID             string `json:"id"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	NewStatus      string `json:"newStatus,omitempty"`
	Action         string `json:"action"`
	ActorID        string `json:"actorId"`
	Note           string `json:"note,omitempty"`
	Timestamp      string `json:"timestamp"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(entity.DateLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toVoucherResponse(v *entity.Voucher, displayStatus string) VoucherResponse {
	if displayStatus == "" {
		displayStatus = v.Status
	}
	return VoucherResponse{
		ID:            v.ID,
		StudentID:     v.StudentID,
		StudentName:   v.StudentName,
		RollNumber:    v.RollNumber,
		ClassID:       v.ClassID,
		ClassName:     v.ClassName,
		Month:         v.Month,
		Amount:        v.Amount,
		IssueDate:     formatDate(v.IssueDate),
		DueDate:       formatDate(v.DueDate),
		Status:        v.Status,
		DisplayStatus: displayStatus,
		VoucherNumber: v.VoucherNumber,
		Message:       v.Message,
		CreatedAt:     formatTime(v.CreatedAt),
		CreatedBy:     v.CreatedBy,
	}
}

func toVoucherResponses(views []*service.VoucherView) []VoucherResponse {
	out := make([]VoucherResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toVoucherResponse(view.Voucher, view.DisplayStatus))
	}
	return out
}

func toSubmissionResponse(s *entity.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:               s.ID,
		VoucherID:        s.VoucherID,
		StudentID:        s.StudentID,
		PaymentMethod:    s.PaymentMethod,
		PaymentProof:     s.PaymentProof,
		ProofContentType: s.ProofContentType,
		ProofPages:       s.ProofPages,
		PaymentDate:      formatDate(s.PaymentDate),
		SubmissionDate:   formatDate(s.SubmissionDate),
		Status:           s.Status,
		ReceiptNumber:    s.ReceiptNumber,
		VerifiedBy:       s.VerifiedBy,
		Remarks:          s.Remarks,
	}
	if s.VerifiedAt != nil {
		resp.VerifiedAt = formatTime(*s.VerifiedAt)
	}
	return resp
}

func toHistoryResponses(entries []*entity.VoucherHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:             h.ID,
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
			Action:         h.Action,
			ActorID:        h.ActorID,
			Note:           h.Note,
			Timestamp:      formatTime(h.Timestamp),
		})
	}
	return out
}

// callerFrom returns the caller resolved by the auth middleware, or nil
func callerFrom(c *gin.Context) *entity.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(*entity.Caller); ok {
			return caller
		}
	}
	return nil
}

// respondError converts an application error into its status code and body
func (h *Handlers) respondError(c *gin.Context, err error) {
	var validation *service.ValidationError
	var missing *service.NotFoundError
	var conflict *service.ConflictError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validation.Message, Details: validation.Details})
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: service.ErrUnauthenticated.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: service.ErrForbidden.Error()})
	case errors.As(err, &missing):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: missing.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: conflict.Error()})
	default:
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
