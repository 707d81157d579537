// Package blur renders the hidden playback layer with OpenCV.
package blur

import (
	"image"

	memeimage "meme-reveal/internal/image"

	"gocv.io/x/gocv"
)

// Filter renders the "hidden" layer: a Gaussian blur followed by dimming.
type Filter struct {
	// Sigma is the Gaussian standard deviation in canvas pixels.
	Sigma float64
	// Dim multiplies RGB after blurring (0 = black, 1 = unchanged).
	Dim float64
}

// Apply returns a blurred and dimmed copy of src.
func (f Filter) Apply(src *image.RGBA) *image.RGBA {
	mat, err := gocv.ImageToMatRGBA(src)
	if err != nil {
		return memeimage.Dim(src, f.Dim)
	}
	defer mat.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(mat, &blurred, image.Point{}, f.Sigma, f.Sigma, gocv.BorderReflect101)

	out, err := blurred.ToImage()
	if err != nil {
		return memeimage.Dim(src, f.Dim)
	}
	return memeimage.Dim(memeimage.ToRGBA(out), f.Dim)
}
