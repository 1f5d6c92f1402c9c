package reconcile

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

// JPEGEncoder re-encodes images as bandwidth-efficient JPEG.
// It implements domain.ImageEncoder; callers treat any error as a signal
// to keep the original bytes and extension.
type JPEGEncoder struct {
	Quality int
}

// NewJPEGEncoder creates an encoder with the default quality
func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{Quality: 80}
}

// Reencode decodes the input and re-encodes it as JPEG
func (e *JPEGEncoder) Reencode(data []byte, mime string) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image (%s): %w", mime, err)
	}

	var buf bytes.Buffer
	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("encoding jpeg: %w", err)
	}

	return buf.Bytes(), ".jpg", nil
}
