package compositor

import (
	"image"

	"github.com/disintegration/imaging"
)

// Enhance applies the filter chain used before text detection on poor
// photographs: grayscale, stronger contrast, sharpening, a small brightness
// lift and gamma correction.
func Enhance(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)
	return img
}

// EnhanceBytes decodes data, enhances it and re-encodes it as PNG.
func EnhanceBytes(data []byte) ([]byte, error) {
	src, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	return encodePNG(Enhance(src))
}
