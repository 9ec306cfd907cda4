package main

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const redactedJPEGQuality = 92

// redactImage decodes an image to pixels and re-encodes it, so nothing
// but pixel data survives. Orientation gets baked in during decode since
// the EXIF tag carrying it does not survive either. Failures are hard
// errors; the original bytes are never returned.
func redactImage(data []byte, contentType string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	format := imaging.JPEG
	opts := []imaging.EncodeOption{imaging.JPEGQuality(redactedJPEGQuality)}
	if contentType == "image/png" {
		format = imaging.PNG
		opts = nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("encoder produced no output")
	}
	return buf.Bytes(), nil
}
