//go:build ocr

package ocr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankPNG(t *testing.T) []byte {
	img := image.NewGray(image.Rect(0, 0, 100, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTesseractDetectorBlankImage(t *testing.T) {
	d, err := NewTesseractDetector("eng")
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer d.Close()

	// Blank pages either yield no words or a Tesseract error.
	_, err = d.Detect(context.Background(), blankPNG(t))
	assert.Error(t, err)
}

func TestTesseractDetectorCancelled(t *testing.T) {
	d, err := NewTesseractDetector("")
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Detect(ctx, blankPNG(t))
	assert.ErrorIs(t, err, context.Canceled)
}
