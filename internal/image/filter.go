package image

import (
	"image"
)

// Dim returns a copy of src with RGB scaled by factor; alpha is kept.
func Dim(src *image.RGBA, factor float64) *image.RGBA {
	out := image.NewRGBA(src.Rect)
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	w := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		in := src.Pix[y*src.Stride : y*src.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for i := 0; i < w; i += 4 {
			dst[i] = uint8(float64(in[i]) * factor)
			dst[i+1] = uint8(float64(in[i+1]) * factor)
			dst[i+2] = uint8(float64(in[i+2]) * factor)
			dst[i+3] = in[i+3]
		}
	}
	return out
}
