package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/dispatcher"
	"github.com/garyjia/school-fees/internal/application/service"
	"github.com/garyjia/school-fees/internal/auth"
	"github.com/garyjia/school-fees/internal/domain/entity"
	"github.com/garyjia/school-fees/internal/infrastructure/export"
	"github.com/garyjia/school-fees/internal/infrastructure/persistence/memory"
	"github.com/garyjia/school-fees/internal/infrastructure/proof"
	"github.com/garyjia/school-fees/internal/infrastructure/storage"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type testEnv struct {
	server *Server
	bearer *auth.Bearer
	store  *memory.Store
}

func newTestEnv(t *testing.T, health map[string]HealthCheck) *testEnv {
	t.Helper()

	store := memory.NewStore()
	logger := nopLogger{}
	zl := zap.NewNop()

	d := dispatcher.NewDispatcher(dispatcher.WithLogger(logger))
	service.NewHistoryRecorder(store.History(), logger).Register(d)

	fees := service.NewFeeStructureService(store.FeeStructures(), service.FeeDefaults{
		TuitionFee: 5000,
		OtherFee:   1000,
		DueDate:    "15th of every month",
	}, logger)
	services := Services{
		FeeStructures: fees,
		Roster:        service.NewRosterService(store.Classes(), store.Students(), logger),
		Vouchers: service.NewVoucherService(
			store.Classes(), store.Students(), store.Vouchers(), store.Submissions(), store.History(),
			fees, export.NewVoucherSheet(zl), d, logger,
		),
		Payments: service.NewPaymentService(
			store.Vouchers(), store.Submissions(), store,
			storage.NewLocalFileStorage(t.TempDir(), zl),
			proof.NewInspector(proof.Config{}, zl),
			d, logger,
		),
	}

	bearer := auth.NewBearer("test-secret", "school-fees-test")
	cfg := DefaultServerConfig()
	cfg.MaxUploadBytes = 1 << 20

	return &testEnv{
		server: NewServer(cfg, services, auth.Chain{bearer}, health, logger),
		bearer: bearer,
		store:  store,
	}
}

func (e *testEnv) token(t *testing.T, id, role string) string {
	t.Helper()
	token, err := e.bearer.IssueToken(entity.Caller{ID: id, Role: role, Name: id}, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req, token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// seedClass registers class C1 in Grade 5 with three students through the API
func (e *testEnv) seedClass(t *testing.T, adminToken string) {
	t.Helper()
	w := e.doJSON(t, http.MethodPost, "/classes", adminToken, map[string]string{
		"id": "C1", "name": "5-A", "grade": "Grade 5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, s := range []struct{ id, roll string }{{"s1", "01"}, {"s2", "02"}, {"s3", "03"}} {
		w := e.doJSON(t, http.MethodPost, "/students", adminToken, map[string]string{
			"id": s.id, "name": "Student " + s.id, "rollNumber": s.roll, "classId": "C1",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

type issueResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Count    int               `json:"count"`
	Skipped  int               `json:"skipped"`
	Vouchers []VoucherResponse `json:"vouchers"`
}

func pngProof(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func paymentRequest(t *testing.T, voucherID string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("voucherId", voucherID))
	require.NoError(t, mw.WriteField("paymentMethod", "Bank Transfer"))
	require.NoError(t, mw.WriteField("paymentDate", "2025-03-10"))
	if file != nil {
		part, err := mw.CreateFormFile("file", "receipt.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/fees/payment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"store": func(ctx context.Context) error { return nil },
	})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Components["store"].Healthy)
}

func TestHealthCheck_Degraded(t *testing.T) {
	env := newTestEnv(t, map[string]HealthCheck{
		"store": func(ctx context.Context) error { return nil },
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Components["redis"].Healthy)
	assert.Equal(t, "connection refused", resp.Components["redis"].Message)
	assert.True(t, resp.Components["store"].Healthy)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("no credentials", func(t *testing.T) {
		w := env.doJSON(t, http.MethodPost, "/fees/vouchers", "", map[string]string{"classId": "C1", "month": "march-2025"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w := env.doJSON(t, http.MethodGet, "/fees/vouchers", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, "invalid credentials", resp.Error)
	})

	t.Run("wrong role", func(t *testing.T) {
		w := env.doJSON(t, http.MethodPost, "/fees/vouchers", env.token(t, "s1", entity.RoleStudent),
			map[string]string{"classId": "C1", "month": "march-2025"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestIssueVouchers(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)
	env.seedClass(t, adminToken)

	w := env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, map[string]string{
		"classId": "C1", "month": "march-2025",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp issueResponse
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Successfully created 3 vouchers with default fee structure", resp.Message)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Vouchers, 3)

	numbers := make([]string, 0, 3)
	for _, v := range resp.Vouchers {
		assert.Equal(t, 6000.0, v.Amount)
		assert.Equal(t, "2025-03-15", v.DueDate)
		assert.Equal(t, entity.VoucherStatusPending, v.Status)
		numbers = append(numbers, v.VoucherNumber)
	}
	assert.ElementsMatch(t, []string{"V-2025-03-01", "V-2025-03-02", "V-2025-03-03"}, numbers)

	// a second run bills nobody twice
	w = env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, map[string]string{
		"classId": "C1", "month": "march-2025",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.Equal(t, 0, resp.Count)
	assert.Equal(t, 3, resp.Skipped)
	assert.Empty(t, resp.Vouchers)
}

func TestIssueVouchers_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)
	env.seedClass(t, adminToken)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
	}{
		{"missing class", map[string]string{"month": "march-2025"}, http.StatusBadRequest},
		{"malformed month", map[string]string{"classId": "C1", "month": "2025/03"}, http.StatusBadRequest},
		{"unknown class", map[string]string{"classId": "C9", "month": "march-2025"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())

			var resp ErrorResponse
			decode(t, w, &resp)
			assert.NotEmpty(t, resp.Error)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/fees/vouchers", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := env.do(t, req, adminToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListVouchers_StudentSeesOwn(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)
	env.seedClass(t, adminToken)

	w := env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, map[string]string{"classId": "C1", "month": "march-2025"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(t, http.MethodGet, "/fees/vouchers?studentId=s2", env.token(t, "s2", entity.RoleStudent), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Vouchers []VoucherResponse `json:"vouchers"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Vouchers, 1)
	assert.Equal(t, "s2", resp.Vouchers[0].StudentID)

	w = env.doJSON(t, http.MethodGet, "/fees/vouchers?studentId=s1", env.token(t, "s2", entity.RoleStudent), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteVoucher(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)
	env.seedClass(t, adminToken)

	w := env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, map[string]string{"classId": "C1", "month": "march-2025"})
	require.Equal(t, http.StatusCreated, w.Code)
	var issued issueResponse
	decode(t, w, &issued)
	id := issued.Vouchers[0].ID

	w = env.doJSON(t, http.MethodDelete, "/fees/vouchers?id=missing", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.doJSON(t, http.MethodDelete, "/fees/vouchers", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doJSON(t, http.MethodDelete, "/fees/vouchers?id="+id, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, id, resp.ID)

	w = env.doJSON(t, http.MethodGet, "/fees/vouchers/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)
	studentToken := env.token(t, "s1", entity.RoleStudent)
	env.seedClass(t, adminToken)

	w := env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, map[string]string{"classId": "C1", "month": "march-2025"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.doJSON(t, http.MethodGet, "/fees/vouchers?studentId=s1", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Vouchers []VoucherResponse `json:"vouchers"`
	}
	decode(t, w, &listed)
	require.Len(t, listed.Vouchers, 1)
	voucherID := listed.Vouchers[0].ID

	t.Run("missing file", func(t *testing.T) {
		w := env.do(t, paymentRequest(t, voucherID, nil), studentToken)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})

	t.Run("admin cannot submit", func(t *testing.T) {
		w := env.do(t, paymentRequest(t, voucherID, pngProof(t)), adminToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	w = env.do(t, paymentRequest(t, voucherID, pngProof(t)), studentToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted struct {
		Success    bool               `json:"success"`
		Submission SubmissionResponse `json:"submission"`
	}
	decode(t, w, &submitted)
	assert.True(t, submitted.Success)
	assert.Equal(t, entity.SubmissionStatusPending, submitted.Submission.Status)
	assert.Equal(t, "2025-03-10", submitted.Submission.PaymentDate)
	assert.Equal(t, "image/png", submitted.Submission.ProofContentType)

	t.Run("second proof while pending", func(t *testing.T) {
		w := env.do(t, paymentRequest(t, voucherID, pngProof(t)), studentToken)
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	})

	w = env.doJSON(t, http.MethodGet, "/fees/vouchers/"+voucherID, studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Voucher VoucherResponse `json:"voucher"`
	}
	decode(t, w, &got)
	assert.Equal(t, entity.DisplayStatusVerifying, got.Voucher.DisplayStatus)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/fees/submissions/"+submitted.Submission.ID+"/proof", nil), studentToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngProof(t), w.Body.Bytes())

	w = env.doJSON(t, http.MethodPost, "/fees/verify-payment", adminToken, map[string]string{
		"submissionId": submitted.Submission.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.doJSON(t, http.MethodPost, "/fees/verify-payment", adminToken, map[string]interface{}{
		"submissionId": submitted.Submission.ID,
		"verify":       true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified struct {
		Submission SubmissionResponse `json:"submission"`
		Voucher    VoucherResponse    `json:"voucher"`
	}
	decode(t, w, &verified)
	assert.Equal(t, entity.SubmissionStatusVerified, verified.Submission.Status)
	assert.NotEmpty(t, verified.Submission.ReceiptNumber)
	assert.Equal(t, entity.VoucherStatusPaid, verified.Voucher.Status)

	w = env.doJSON(t, http.MethodGet, "/fees/vouchers/"+voucherID+"/history", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []HistoryResponse `json:"history"`
	}
	decode(t, w, &history)
	require.NotEmpty(t, history.History)
	assert.Equal(t, entity.VoucherStatusPaid, history.History[len(history.History)-1].NewStatus)
}

func TestExportVouchers(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)
	env.seedClass(t, adminToken)

	w := env.doJSON(t, http.MethodPost, "/fees/vouchers", adminToken, map[string]string{"classId": "C1", "month": "march-2025"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/fees/vouchers/export?classId=C1&month=march-2025", nil), adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vouchers-C1-march-2025.xlsx")
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestFeeStructureEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken := env.token(t, "admin-1", entity.RoleAdmin)

	w := env.doJSON(t, http.MethodPost, "/fees/structure", adminToken, map[string]interface{}{
		"grade": "Grade 6", "tuitionFee": 7000, "otherFee": 500, "dueDate": "10th of every month",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		FeeStructure entity.FeeStructure `json:"feeStructure"`
	}
	decode(t, w, &created)
	assert.Equal(t, 7500.0, created.FeeStructure.TotalFee)

	w = env.doJSON(t, http.MethodPost, "/fees/structure", adminToken, map[string]interface{}{
		"grade": "Grade 6", "tuitionFee": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = env.doJSON(t, http.MethodGet, "/fees/structure", env.token(t, "p1", entity.RoleParent), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		FeeStructures []entity.FeeStructure `json:"feeStructures"`
	}
	decode(t, w, &listed)
	assert.Len(t, listed.FeeStructures, 1)

	w = env.doJSON(t, http.MethodPost, "/fees/structure", env.token(t, "t1", entity.RoleTeacher), map[string]interface{}{
		"grade": "Grade 7", "tuitionFee": 1,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.doJSON(t, http.MethodDelete, "/fees/structure?id="+created.FeeStructure.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
