package port

import (
	"context"
	"errors"

	"github.com/garyjia/school-fees/internal/domain/entity"
)

// FileStorage defines file storage operations on paths relative to a root
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// ErrUnsupportedProof is wrapped by ProofInspector for content it refuses
var ErrUnsupportedProof = errors.New("unsupported payment proof")

// ProofFile is an uploaded payment proof
type ProofFile struct {
	FileName string
	Content  []byte
}

// ProofReport describes an accepted payment proof
type ProofReport struct {
	ContentType string
	Extension   string
	Pages       int
	// Preview is a JPEG thumbnail, nil when none could be rendered
	Preview []byte
}

// ProofInspector validates and describes uploaded payment proofs
type ProofInspector interface {
	Inspect(ctx context.Context, file ProofFile) (*ProofReport, error)
}

// ExportRow is one voucher line of an export
type ExportRow struct {
	Voucher       *entity.Voucher
	DisplayStatus string
}

// VoucherExporter renders vouchers as a spreadsheet document
type VoucherExporter interface {
	Export(ctx context.Context, title string, rows []ExportRow) ([]byte, error)
}
