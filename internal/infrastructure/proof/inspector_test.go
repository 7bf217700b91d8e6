package proof

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/school-fees/internal/application/port"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInspector_PNGPreviewIsBounded(t *testing.T) {
	inspector := NewInspector(Config{PreviewWidth: 100}, zap.NewNop())

	report, err := inspector.Inspect(context.Background(), port.ProofFile{
		FileName: "receipt.bin",
		Content:  encodePNG(t, testImage(400, 200)),
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", report.ContentType)
	assert.Equal(t, ".png", report.Extension)
	assert.Equal(t, 1, report.Pages)
	require.NotEmpty(t, report.Preview)

	preview, err := jpeg.Decode(bytes.NewReader(report.Preview))
	require.NoError(t, err)
	assert.Equal(t, 100, preview.Bounds().Dx())
	assert.Equal(t, 50, preview.Bounds().Dy())
}

func TestInspector_JPEGSmallerThanPreviewKeepsSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(60, 40), nil))

	report, err := NewInspector(Config{}, zap.NewNop()).Inspect(context.Background(), port.ProofFile{Content: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", report.ContentType)
	assert.Equal(t, ".jpg", report.Extension)

	preview, err := jpeg.Decode(bytes.NewReader(report.Preview))
	require.NoError(t, err)
	assert.Equal(t, 60, preview.Bounds().Dx())
}

func TestInspector_WebP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, testImage(32, 32), &webp.Options{Lossless: true}))

	report, err := NewInspector(Config{}, zap.NewNop()).Inspect(context.Background(), port.ProofFile{Content: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "image/webp", report.ContentType)
	assert.Equal(t, ".webp", report.Extension)
	assert.NotEmpty(t, report.Preview)
}

func TestInspector_Rejects(t *testing.T) {
	inspector := NewInspector(Config{MaxBytes: 1024}, zap.NewNop())

	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", nil},
		{"too large", bytes.Repeat([]byte{0x89}, 2048)},
		{"plain text", []byte("this is not a receipt")},
		{"truncated png", encodePNG(t, testImage(8, 8))[:40]},
		{"broken pdf", []byte("%PDF-1.4\nnot really a pdf\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := inspector.Inspect(context.Background(), port.ProofFile{FileName: "x", Content: tt.content})
			assert.ErrorIs(t, err, port.ErrUnsupportedProof)
			assert.Nil(t, report)
		})
	}
}
