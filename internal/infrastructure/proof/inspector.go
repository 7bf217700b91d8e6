package proof

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/port"
)

// Defaults applied when Config leaves a field zero
const (
	DefaultMaxBytes     = 5 << 20
	DefaultPreviewWidth = 800
	previewQuality      = 80
)

// Config bounds what the inspector accepts and how large previews are
type Config struct {
	MaxBytes     int64
	PreviewWidth int
}

// Inspector implements port.ProofInspector for PDF, JPEG, PNG and WebP uploads
type Inspector struct {
	maxBytes     int64
	previewWidth int
	logger       *zap.Logger
}

// NewInspector creates a proof inspector
func NewInspector(cfg Config, logger *zap.Logger) *Inspector {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.PreviewWidth <= 0 {
		cfg.PreviewWidth = DefaultPreviewWidth
	}
	return &Inspector{
		maxBytes:     cfg.MaxBytes,
		previewWidth: cfg.PreviewWidth,
		logger:       logger,
	}
}

var extensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

// Inspect sniffs the content type from the bytes themselves, ignoring the
// client supplied file name, and renders a JPEG preview.
func (i *Inspector) Inspect(ctx context.Context, file port.ProofFile) (*port.ProofReport, error) {
	size := int64(len(file.Content))
	if size == 0 {
		return nil, fmt.Errorf("%w: empty file", port.ErrUnsupportedProof)
	}
	if size > i.maxBytes {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d", port.ErrUnsupportedProof, size, i.maxBytes)
	}

	contentType := http.DetectContentType(file.Content)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: content type %s", port.ErrUnsupportedProof, contentType)
	}

	report := &port.ProofReport{ContentType: contentType, Extension: ext, Pages: 1}

	var img image.Image
	var err error
	switch contentType {
	case "application/pdf":
		img, report.Pages, err = firstPage(file.Content)
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(file.Content))
	default:
		img, err = imaging.Decode(bytes.NewReader(file.Content))
	}
	if err != nil {
		i.logger.Info("Rejected payment proof",
			zap.String("file_name", file.FileName),
			zap.String("content_type", contentType),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", port.ErrUnsupportedProof, err)
	}

	if img != nil {
		preview, err := i.preview(img)
		if err != nil {
			i.logger.Warn("Failed to render proof preview", zap.String("file_name", file.FileName), zap.Error(err))
		} else {
			report.Preview = preview
		}
	}

	return report, nil
}

// firstPage opens a PDF, returning its first page rendered and its page count
func firstPage(content []byte) (image.Image, int, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return nil, 0, fmt.Errorf("PDF has no pages")
	}

	// a page that will not render still leaves a countable document
	img, err := doc.Image(0)
	if err != nil {
		return nil, pages, nil
	}
	return img, pages, nil
}

func (i *Inspector) preview(img image.Image) ([]byte, error) {
	if img.Bounds().Dx() > i.previewWidth {
		img = imaging.Resize(img, i.previewWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(previewQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ port.ProofInspector = (*Inspector)(nil)
