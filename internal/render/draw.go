package render

import (
	"image"
	"image/color"
	"image/draw"

	"meme-reveal/pkg/colorutil"
)

// drawRect draws a rectangle outline of the given width inside r.
func drawRect(img *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	if width < 1 {
		width = 1
	}
	bounds := img.Bounds()

	for i := 0; i < width; i++ {
		x1, y1 := r.Min.X+i, r.Min.Y+i
		x2, y2 := r.Max.X-1-i, r.Max.Y-1-i
		if x1 > x2 || y1 > y2 {
			return
		}

		// Top and bottom edges
		for x := x1; x <= x2; x++ {
			if x >= bounds.Min.X && x < bounds.Max.X {
				if y1 >= bounds.Min.Y && y1 < bounds.Max.Y {
					img.SetRGBA(x, y1, c)
				}
				if y2 >= bounds.Min.Y && y2 < bounds.Max.Y {
					img.SetRGBA(x, y2, c)
				}
			}
		}

		// Left and right edges
		for y := y1; y <= y2; y++ {
			if y >= bounds.Min.Y && y < bounds.Max.Y {
				if x1 >= bounds.Min.X && x1 < bounds.Max.X {
					img.SetRGBA(x1, y, c)
				}
				if x2 >= bounds.Min.X && x2 < bounds.Max.X {
					img.SetRGBA(x2, y, c)
				}
			}
		}
	}
}

// fillRect fills r clipped to the image.
func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawHandles draws square resize handles centred on the corners of r.
func drawHandles(img *image.RGBA, r image.Rectangle, size int, c color.RGBA) {
	half := size / 2
	corners := []image.Point{
		r.Min,
		{X: r.Max.X - 1, Y: r.Min.Y},
		{X: r.Min.X, Y: r.Max.Y - 1},
		{X: r.Max.X - 1, Y: r.Max.Y - 1},
	}
	for _, p := range corners {
		h := image.Rect(p.X-half, p.Y-half, p.X-half+size, p.Y-half+size)
		fillRect(img, h, c)
		drawRect(img, h, 1, colorutil.Black)
	}
}
