// Package imagecheck validates that a payload is a supported image
// before it is handed to the image pipeline.
package imagecheck

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes caps accepted payloads at 10 MiB.
const DefaultMaxBytes = 10 << 20

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds the size limit")
	ErrEmpty             = errors.New("image payload is empty")
)

var mimeByFormat = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// Validate sniffs the payload and returns its MIME type. A non-positive
// maxBytes uses DefaultMaxBytes.
func Validate(data []byte, maxBytes int) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), maxBytes)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	mime, ok := mimeByFormat[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return mime, nil
}

// DataURL encodes a validated payload as a data URL for mixed-content
// upstream requests.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
