// Package ocr adapts external text-detection services to a single Detector
// capability and runs batches of detections concurrently.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"topo-scan/pkg/models"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// AzureDetector detects printed text with Azure Computer Vision.
type AzureDetector struct {
	client *computervision.BaseClient
}

// NewAzureDetector creates a detector for the given Computer Vision endpoint.
func NewAzureDetector(endpoint, apiKey string) *AzureDetector {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureDetector{client: &client}
}

// Detect runs printed-text recognition on image.
func (d *AzureDetector) Detect(ctx context.Context, image []byte) (*models.Detection, error) {
	result, err := d.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(image)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize text: %w", err)
	}

	return buildDetection(linesFromOCRResult(result))
}

// linesFromOCRResult flattens regions into text lines in document order.
// A line's text is its words joined by spaces. Its box is the line box Azure
// reports, or the union of the word boxes when that is missing.
func linesFromOCRResult(result computervision.OcrResult) []line {
	if result.Regions == nil {
		return nil
	}

	var lines []line
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, l := range *region.Lines {
			if l.Words == nil {
				continue
			}
			var words []string
			var union image.Rectangle
			for _, w := range *l.Words {
				if w.Text == nil || strings.TrimSpace(*w.Text) == "" {
					continue
				}
				words = append(words, strings.TrimSpace(*w.Text))
				if w.BoundingBox != nil {
					if rect, ok := parseBoundingBox(*w.BoundingBox); ok {
						union = union.Union(rect)
					}
				}
			}
			if len(words) == 0 {
				continue
			}

			rect := union
			if l.BoundingBox != nil {
				if r, ok := parseBoundingBox(*l.BoundingBox); ok {
					rect = r
				}
			}
			if rect.Empty() {
				continue
			}
			lines = append(lines, line{text: strings.Join(words, " "), rect: rect})
		}
	}
	return lines
}

// parseBoundingBox parses Azure's "left,top,width,height" box string.
func parseBoundingBox(s string) (image.Rectangle, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, false
	}

	var v [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return image.Rectangle{}, false
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), true
}
