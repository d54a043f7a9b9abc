package imagecheck

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// onePixelPNG is a valid 1x1 PNG.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func pngBytes(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(onePixelPNG)
	require.NoError(t, err)
	return data
}

func TestValidateAcceptsPNG(t *testing.T) {
	mime, err := Validate(pngBytes(t), 0)
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)
}

func TestValidateRejectsNonImage(t *testing.T) {
	_, err := Validate([]byte("definitely not an image"), 0)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidateRejectsEmpty(t *testing.T) {
	_, err := Validate(nil, 0)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestValidateEnforcesSizeCap(t *testing.T) {
	data := pngBytes(t)
	_, err := Validate(data, len(data)-1)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestDataURLEncodesPayload(t *testing.T) {
	url := DataURL("image/png", pngBytes(t))
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	require.Equal(t, pngBytes(t), decoded)
}
