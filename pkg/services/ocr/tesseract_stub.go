//go:build !ocr

package ocr

import (
	"context"
	"errors"

	"topo-scan/pkg/models"
)

// ErrTesseractNotEnabled is returned when the binary was built without the
// "ocr" tag. Rebuild with -tags ocr to enable the local detector.
var ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// TesseractDetector is a stub used when Tesseract support is not compiled in.
type TesseractDetector struct{}

// NewTesseractDetector returns ErrTesseractNotEnabled.
func NewTesseractDetector(lang string) (*TesseractDetector, error) {
	return nil, ErrTesseractNotEnabled
}

// Close is a no-op. It is safe to call on a nil detector.
func (d *TesseractDetector) Close() error {
	return nil
}

// Detect returns ErrTesseractNotEnabled.
func (d *TesseractDetector) Detect(ctx context.Context, image []byte) (*models.Detection, error) {
	return nil, ErrTesseractNotEnabled
}
