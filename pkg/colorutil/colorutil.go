// Package colorutil provides shared color utilities for detection and rendering.
package colorutil

import (
	"image/color"
)

// Overlay colors used by the renderer and debug tools.
var (
	Black     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Cyan      = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	Magenta   = color.RGBA{R: 255, G: 0, B: 255, A: 255}
	Yellow    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Highlight = color.RGBA{R: 255, G: 204, B: 0, A: 255}
	Backdrop  = color.RGBA{R: 16, G: 16, B: 16, A: 255}
)

// Luma returns the Rec. 601 weighted luma (0-255) of 8-bit RGB components.
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// LumaOf returns the luma of an arbitrary color, ignoring alpha.
func LumaOf(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return Luma(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
