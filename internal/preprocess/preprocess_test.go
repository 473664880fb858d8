package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			// mid-gray gradient so normalization has something to stretch
			v := uint8(96 + x*8)
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeProducesBinaryPNG(t *testing.T) {
	p := New(nil)

	out := p.Normalize(testImagePNG(t))
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// every pixel must be pure black or pure white after thresholding
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			v := uint8(r >> 8)
			assert.True(t, v == 0 || v == 255, "pixel (%d,%d) = %d not binary", x, y, v)
			assert.Equal(t, r, g)
			assert.Equal(t, g, bl)
		}
	}
}

func TestNormalizeCorruptInputFallsBack(t *testing.T) {
	p := New(nil)

	raw := []byte("definitely not an image")
	out := p.Normalize(raw)
	assert.Equal(t, raw, out, "corrupt input must come back unchanged")
}

func TestNormalizeEmptyInputFallsBack(t *testing.T) {
	p := New(nil)

	out := p.Normalize(nil)
	assert.Nil(t, out)
}
