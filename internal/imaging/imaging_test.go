package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	data := encodePNG(t, 640, 480)
	w, h, err := Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestDimensionsGarbage(t *testing.T) {
	_, _, err := Dimensions([]byte("not an image"))
	assert.Error(t, err)
}

func TestThumbnailDownscales(t *testing.T) {
	data := encodePNG(t, 800, 400)
	out, err := Thumbnail(data, 200)
	require.NoError(t, err)

	w, h, err := Dimensions(out)
	require.NoError(t, err)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	data := encodePNG(t, 150, 150)
	out, err := Thumbnail(data, 200)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
