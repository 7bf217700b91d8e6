package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/application/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains HTTP handlers for the fee endpoints
type Handlers struct {
	vouchers       service.VoucherService
	payments       service.PaymentService
	feeStructures  service.FeeStructureService
	roster         service.RosterService
	logger         Logger
	maxUploadBytes int64
}

// NewHandlers creates new HTTP handlers
func NewHandlers(services Services, logger Logger, maxUploadBytes int64) *Handlers {
	return &Handlers{
		vouchers:       services.Vouchers,
		payments:       services.Payments,
		feeStructures:  services.FeeStructures,
		roster:         services.Roster,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// IssueVoucherRequest is the body of POST /fees/vouchers
type IssueVoucherRequest struct {
	ClassID string `json:"classId"`
	Month   string `json:"month"`
	Message string `json:"message"`
}

// VerifyPaymentRequest is the body of POST /fees/verify-payment
type VerifyPaymentRequest struct {
	SubmissionID string `json:"submissionId"`
	Verify       *bool  `json:"verify"`
	Remarks      string `json:"remarks"`
}

func (h *Handlers) badJSON(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
}

// IssueVouchers handles POST /fees/vouchers
func (h *Handlers) IssueVouchers(c *gin.Context) {
	var req IssueVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}

	result, err := h.vouchers.Issue(c.Request.Context(), callerFrom(c), service.IssueRequest{
		ClassID: req.ClassID,
		Month:   req.Month,
		Message: req.Message,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	vouchers := make([]VoucherResponse, 0, len(result.Vouchers))
	for _, v := range result.Vouchers {
		vouchers = append(vouchers, toVoucherResponse(v, ""))
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  result.Message(),
		"count":    len(vouchers),
		"skipped":  result.Skipped,
		"vouchers": vouchers,
	})
}

// ListVouchers handles GET /fees/vouchers
func (h *Handlers) ListVouchers(c *gin.Context) {
	views, err := h.vouchers.List(c.Request.Context(), callerFrom(c), service.VoucherQuery{
		StudentID: c.Query("studentId"),
		ClassID:   c.Query("classId"),
		Month:     c.Query("month"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouchers": toVoucherResponses(views)})
}

// GetVoucher handles GET /fees/vouchers/:id
func (h *Handlers) GetVoucher(c *gin.Context) {
	view, err := h.vouchers.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voucher": toVoucherResponse(view.Voucher, view.DisplayStatus)})
}

// DeleteVoucher handles DELETE /fees/vouchers?id=
func (h *Handlers) DeleteVoucher(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "voucher id is required"})
		return
	}

	if err := h.vouchers.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Voucher deleted successfully",
		"id":      id,
	})
}

// VoucherHistory handles GET /fees/vouchers/:id/history
func (h *Handlers) VoucherHistory(c *gin.Context) {
	entries, err := h.vouchers.History(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": toHistoryResponses(entries)})
}

// ExportVouchers handles GET /fees/vouchers/export
func (h *Handlers) ExportVouchers(c *gin.Context) {
	classID := c.Query("classId")
	month := c.Query("month")

	content, err := h.vouchers.Export(c.Request.Context(), callerFrom(c), classID, month)
	if err != nil {
		h.respondError(c, err)
		return
	}

	name := "vouchers"
	if classID != "" {
		name += "-" + classID
	}
	if month != "" {
		name += "-" + month
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	c.Data(http.StatusOK, xlsxContentType, content)
}

// SubmitPayment handles POST /fees/payment (multipart form)
func (h *Handlers) SubmitPayment(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	var proof port.ProofFile
	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		f, err := fileHeader.Open()
		if err != nil {
			h.respondError(c, fmt.Errorf("open upload: %w", err))
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.respondError(c, fmt.Errorf("read upload: %w", err))
			return
		}
		proof = port.ProofFile{FileName: fileHeader.Filename, Content: content}
	case errors.Is(err, http.ErrMissingFile):
		// the service reports the missing proof
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "payment proof too large",
				Details: fmt.Sprintf("limit is %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form", Details: err.Error()})
		return
	}

	submission, err := h.payments.SubmitProof(c.Request.Context(), callerFrom(c), service.SubmitProofRequest{
		VoucherID:     c.PostForm("voucherId"),
		PaymentMethod: c.PostForm("paymentMethod"),
		PaymentDate:   c.PostForm("paymentDate"),
		File:          proof,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Payment proof submitted successfully",
		"submission": toSubmissionResponse(submission),
	})
}

// VerifyPayment handles POST /fees/verify-payment
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badJSON(c, err)
		return
	}
	if req.Verify == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "verify is required"})
		return
	}

	result, err := h.payments.Verify(c.Request.Context(), callerFrom(c), service.VerifyRequest{
		SubmissionID: req.SubmissionID,
		Verify:       *req.Verify,
		Remarks:      req.Remarks,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := "Payment rejected"
	if *req.Verify {
		message = "Payment verified successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    message,
		"submission": toSubmissionResponse(result.Submission),
		"voucher":    toVoucherResponse(result.Voucher, ""),
	})
}

// ListSubmissions handles GET /fees/submissions
func (h *Handlers) ListSubmissions(c *gin.Context) {
	submissions, err := h.payments.ListSubmissions(c.Request.Context(), callerFrom(c), service.SubmissionQuery{
		VoucherID: c.Query("voucherId"),
		Status:    c.Query("status"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]SubmissionResponse, 0, len(submissions))
	for _, s := range submissions {
		out = append(out, toSubmissionResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": out})
}

// DownloadProof handles GET /fees/submissions/:id/proof
func (h *Handlers) DownloadProof(c *gin.Context) {
	proof, err := h.payments.OpenProof(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, proof.FileName))
	c.Data(http.StatusOK, proof.ContentType, proof.Content)
}

// ListFeeStructures handles GET /fees/structure
func (h *Handlers) ListFeeStructures(c *gin.Context) {
	structures, err := h.feeStructures.List(c.Request.Context(), callerFrom(c), c.Query("grade"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feeStructures": structures})
}

// CreateFeeStructure handles POST /fees/structure
func (h *Handlers) CreateFeeStructure(c *gin.Context) {
	var input service.FeeStructureInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badJSON(c, err)
		return
	}

	fs, err := h.feeStructures.Create(c.Request.Context(), callerFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      "Fee structure created successfully",
		"feeStructure": fs,
	})
}

// UpdateFeeStructure handles PUT /fees/structure
func (h *Handlers) UpdateFeeStructure(c *gin.Context) {
	var input service.FeeStructureInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badJSON(c, err)
		return
	}
	if input.ID == "" {
		input.ID = c.Query("id")
	}

	fs, err := h.feeStructures.Update(c.Request.Context(), callerFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Fee structure updated successfully",
		"feeStructure": fs,
	})
}

// DeleteFeeStructure handles DELETE /fees/structure?id=
func (h *Handlers) DeleteFeeStructure(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "fee structure id is required"})
		return
	}

	if err := h.feeStructures.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Fee structure deleted successfully",
		"id":      id,
	})
}

// CreateClass handles POST /classes
func (h *Handlers) CreateClass(c *gin.Context) {
	var input service.ClassInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badJSON(c, err)
		return
	}

	class, err := h.roster.CreateClass(c.Request.Context(), callerFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"class": class})
}

// ListClasses handles GET /classes
func (h *Handlers) ListClasses(c *gin.Context) {
	classes, err := h.roster.ListClasses(c.Request.Context(), callerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

// CreateStudent handles POST /students
func (h *Handlers) CreateStudent(c *gin.Context) {
	var input service.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badJSON(c, err)
		return
	}

	student, err := h.roster.CreateStudent(c.Request.Context(), callerFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": student})
}

// ListStudents handles GET /students?classId=
func (h *Handlers) ListStudents(c *gin.Context) {
	students, err := h.roster.ListStudents(c.Request.Context(), callerFrom(c), c.Query("classId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}
