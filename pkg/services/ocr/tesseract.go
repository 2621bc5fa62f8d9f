//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"topo-scan/pkg/models"

	"github.com/otiai10/gosseract/v2"
)

// TesseractDetector detects text locally with Tesseract.
// A gosseract client is not safe for concurrent use, so calls are serialized.
type TesseractDetector struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractDetector creates a local detector. Close it when done.
func NewTesseractDetector(lang string) (*TesseractDetector, error) {
	client := gosseract.NewClient()
	if lang != "" {
		if err := client.SetLanguage(lang); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}
	return &TesseractDetector{client: client}, nil
}

// Close releases Tesseract resources.
func (d *TesseractDetector) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// Detect returns one fragment per recognized text line.
func (d *TesseractDetector) Detect(ctx context.Context, image []byte) (*models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := d.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	lines := make([]line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.Join(strings.Fields(b.Word), " ")
		if text == "" {
			continue
		}
		lines = append(lines, line{text: text, rect: b.Box})
	}
	return buildDetection(lines)
}
