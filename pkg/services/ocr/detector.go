package ocr

import (
	"context"
	"errors"
	"image"
	"strings"

	"topo-scan/pkg/models"
)

// ErrNoTextDetected is returned when the detector found no text at all.
var ErrNoTextDetected = errors.New("no text detected")

// Detector finds text in an image. The returned detection's first fragment
// is the whole-image summary.
type Detector interface {
	Detect(ctx context.Context, image []byte) (*models.Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, image []byte) (*models.Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, image []byte) (*models.Detection, error) {
	return f(ctx, image)
}

// line is one detected text line with its pixel box.
type line struct {
	text string
	rect image.Rectangle
}

// buildDetection assembles a detection from lines: a summary fragment whose
// text is the lines joined by newlines and whose box is the union of all line
// boxes, followed by one fragment per line.
func buildDetection(lines []line) (*models.Detection, error) {
	if len(lines) == 0 {
		return nil, ErrNoTextDetected
	}

	var union image.Rectangle
	texts := make([]string, len(lines))
	for i, l := range lines {
		union = union.Union(l.rect)
		texts[i] = l.text
	}

	det := &models.Detection{Fragments: make([]models.Fragment, 0, len(lines)+1)}
	det.Fragments = append(det.Fragments, models.Fragment{Text: strings.Join(texts, "\n"), Box: rectBox(union)})
	for _, l := range lines {
		det.Fragments = append(det.Fragments, models.Fragment{Text: l.text, Box: rectBox(l.rect)})
	}
	return det, nil
}

func rectBox(r image.Rectangle) models.BoundingBox {
	return models.RectBox(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
}
