package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"meme-reveal/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img, format, err := Decode(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, _, err = Decode([]byte("not an image"))
	assert.True(t, errors.Is(err, ErrDecode))

	_, _, err = Decode(nil)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestCropBox(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	src.Set(60, 30, color.RGBA{R: 255, A: 255})

	crop := CropBox(src, geometry.BoundingBox{XMin: 500, YMin: 500, XMax: 1000, YMax: 1000})
	assert.Equal(t, image.Rect(0, 0, 50, 25), crop.Bounds())
	r, _, _, _ := crop.At(10, 5).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestDim(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	out := Dim(src, 0.5)
	assert.Equal(t, color.RGBA{R: 100, G: 50, B: 25, A: 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, src.RGBAAt(0, 0))
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("meme.PNG"))
	assert.True(t, IsSupportedFormat("/tmp/a.webp"))
	assert.False(t, IsSupportedFormat("notes.txt"))
}
