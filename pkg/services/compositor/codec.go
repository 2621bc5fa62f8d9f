package compositor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

func decodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
