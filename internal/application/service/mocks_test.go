package service

import (
	"context"
	"sync"

	"github.com/garyjia/school-fees/internal/application/port"
	"github.com/garyjia/school-fees/internal/domain/entity"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// mockFeeStructureRepo wraps another repository and lets a test override single calls
type mockFeeStructureRepo struct {
	port.FeeStructureRepository
	createFunc     func(ctx context.Context, fs *entity.FeeStructure) error
	getByGradeFunc func(ctx context.Context, grade string) (*entity.FeeStructure, error)
}

func (m *mockFeeStructureRepo) Create(ctx context.Context, fs *entity.FeeStructure) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, fs)
	}
	return m.FeeStructureRepository.Create(ctx, fs)
}

func (m *mockFeeStructureRepo) GetByGrade(ctx context.Context, grade string) (*entity.FeeStructure, error) {
	if m.getByGradeFunc != nil {
		return m.getByGradeFunc(ctx, grade)
	}
	return m.FeeStructureRepository.GetByGrade(ctx, grade)
}

type mockVoucherRepo struct {
	port.VoucherRepository
	createFunc       func(ctx context.Context, v *entity.Voucher) error
	updateStatusFunc func(ctx context.Context, id, status string) error
}

func (m *mockVoucherRepo) Create(ctx context.Context, v *entity.Voucher) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, v)
	}
	return m.VoucherRepository.Create(ctx, v)
}

func (m *mockVoucherRepo) UpdateStatus(ctx context.Context, id, status string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return m.VoucherRepository.UpdateStatus(ctx, id, status)
}

type mockSubmissionRepo struct {
	port.SubmissionRepository
	getByIDFunc func(ctx context.Context, id string) (*entity.Submission, error)
	createFunc  func(ctx context.Context, sub *entity.Submission) error
}

func (m *mockSubmissionRepo) GetByID(ctx context.Context, id string) (*entity.Submission, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return m.SubmissionRepository.GetByID(ctx, id)
}

func (m *mockSubmissionRepo) Create(ctx context.Context, sub *entity.Submission) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	return m.SubmissionRepository.Create(ctx, sub)
}

type mockHistoryRepo struct {
	createFunc func(ctx context.Context, h *entity.VoucherHistory) error
	created    []*entity.VoucherHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.VoucherHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, h)
	}
	m.created = append(m.created, h)
	return nil
}

func (m *mockHistoryRepo) GetByVoucherID(ctx context.Context, voucherID string) ([]*entity.VoucherHistory, error) {
	var out []*entity.VoucherHistory
	for _, h := range m.created {
		if h.VoucherID == voucherID {
			out = append(out, h)
		}
	}
	return out, nil
}

type mockStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{files: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, context.Canceled
	}
	return content, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/proofs-root/" + relativePath
}

type mockInspector struct {
	inspectFunc func(ctx context.Context, file port.ProofFile) (*port.ProofReport, error)
}

func (m *mockInspector) Inspect(ctx context.Context, file port.ProofFile) (*port.ProofReport, error) {
	if m.inspectFunc != nil {
		return m.inspectFunc(ctx, file)
	}
	return &port.ProofReport{ContentType: "image/png", Extension: ".png", Preview: []byte("thumb")}, nil
}

type mockExporter struct {
	title string
	rows  []port.ExportRow
}

func (m *mockExporter) Export(ctx context.Context, title string, rows []port.ExportRow) ([]byte, error) {
	m.title = title
	m.rows = rows
	return []byte("xlsx"), nil
}
