package geometry

import (
	"image"
	"math"
)

// NormalizedMax is the upper bound of the normalized coordinate space.
const NormalizedMax = 1000.0

// minBoxExtent keeps clamped boxes non-degenerate.
const minBoxExtent = 1.0

// BoundingBox is a box in the 0-1000 normalized space, relative to the
// width and height of the image it belongs to.
type BoundingBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// NewBoundingBox creates a clamped BoundingBox.
func NewBoundingBox(xmin, ymin, xmax, ymax float64) BoundingBox {
	return BoundingBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}.Clamp()
}

// FullImage returns the box covering the whole image.
func FullImage() BoundingBox {
	return BoundingBox{XMax: NormalizedMax, YMax: NormalizedMax}
}

// Width returns the normalized width.
func (b BoundingBox) Width() float64 {
	return b.XMax - b.XMin
}

// Height returns the normalized height.
func (b BoundingBox) Height() float64 {
	return b.YMax - b.YMin
}

// Valid reports whether the box satisfies min < max with all values in range.
func (b BoundingBox) Valid() bool {
	in := func(v float64) bool { return v >= 0 && v <= NormalizedMax }
	return in(b.XMin) && in(b.YMin) && in(b.XMax) && in(b.YMax) &&
		b.XMin < b.XMax && b.YMin < b.YMax
}

// Clamp returns the box with coordinates ordered, clamped to [0,1000] and
// widened to a minimal extent when a side collapsed.
func (b BoundingBox) Clamp() BoundingBox {
	if b.XMin > b.XMax {
		b.XMin, b.XMax = b.XMax, b.XMin
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = b.YMax, b.YMin
	}
	b.XMin, b.XMax = clampSpan(b.XMin, b.XMax)
	b.YMin, b.YMax = clampSpan(b.YMin, b.YMax)
	return b
}

func clampSpan(lo, hi float64) (float64, float64) {
	lo = clamp(lo, 0, NormalizedMax)
	hi = clamp(hi, 0, NormalizedMax)
	if hi-lo < minBoxExtent {
		if lo+minBoxExtent <= NormalizedMax {
			hi = lo + minBoxExtent
		} else {
			lo = hi - minBoxExtent
		}
	}
	return lo, hi
}

// ToPixels converts the box into pixel space of an image of size imgW x imgH.
func (b BoundingBox) ToPixels(imgW, imgH int) Rect {
	sx := float64(imgW) / NormalizedMax
	sy := float64(imgH) / NormalizedMax
	return Rect{
		X:      b.XMin * sx,
		Y:      b.YMin * sy,
		Width:  (b.XMax - b.XMin) * sx,
		Height: (b.YMax - b.YMin) * sy,
	}
}

// ToRectInt converts the box to whole pixels, clipped to the image.
func (b BoundingBox) ToRectInt(imgW, imgH int) RectInt {
	r := b.ToPixels(imgW, imgH)
	x0 := clampInt(int(math.Floor(r.X)), 0, imgW)
	y0 := clampInt(int(math.Floor(r.Y)), 0, imgH)
	x1 := clampInt(int(math.Ceil(r.X+r.Width)), 0, imgW)
	y1 := clampInt(int(math.Ceil(r.Y+r.Height)), 0, imgH)
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// FromPixels converts a pixel rectangle of an imgW x imgH image into the
// normalized space. The result is not clamped.
func FromPixels(r Rect, imgW, imgH int) BoundingBox {
	if imgW <= 0 || imgH <= 0 {
		return BoundingBox{}
	}
	sx := NormalizedMax / float64(imgW)
	sy := NormalizedMax / float64(imgH)
	return BoundingBox{
		XMin: r.X * sx,
		YMin: r.Y * sy,
		XMax: (r.X + r.Width) * sx,
		YMax: (r.Y + r.Height) * sy,
	}
}

// Viewport maps image pixels onto a canvas with uniform letterboxed scaling:
// scale = min(canvasW/imageW, canvasH/imageH), centered on the canvas.
type Viewport struct {
	CanvasW, CanvasH int
	ImageW, ImageH   int
	Scale            float64
	OffsetX, OffsetY float64
}

// Letterbox computes the viewport for an image drawn onto a canvas.
func Letterbox(canvasW, canvasH, imageW, imageH int) Viewport {
	v := Viewport{CanvasW: canvasW, CanvasH: canvasH, ImageW: imageW, ImageH: imageH}
	if imageW <= 0 || imageH <= 0 {
		return v
	}
	v.Scale = math.Min(float64(canvasW)/float64(imageW), float64(canvasH)/float64(imageH))
	v.OffsetX = (float64(canvasW) - float64(imageW)*v.Scale) / 2
	v.OffsetY = (float64(canvasH) - float64(imageH)*v.Scale) / 2
	return v
}

// Transform returns the image-to-canvas transform.
func (v Viewport) Transform() AffineTransform {
	return ScaleTranslate(v.Scale, v.OffsetX, v.OffsetY)
}

// ImageRect returns the canvas rectangle covered by the whole image.
func (v Viewport) ImageRect() image.Rectangle {
	return v.BoxToCanvas(FullImage())
}

// BoxToCanvas converts a normalized box to destination canvas pixels.
func (v Viewport) BoxToCanvas(b BoundingBox) image.Rectangle {
	r := v.Transform().ApplyRect(b.ToPixels(v.ImageW, v.ImageH))
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

// CanvasToBox converts a canvas rectangle (for example one drawn by the user)
// back into the normalized space. The result is clamped.
func (v Viewport) CanvasToBox(r image.Rectangle) BoundingBox {
	inv, ok := v.Transform().Inverse()
	if !ok {
		return FullImage()
	}
	px := inv.ApplyRect(Rect{
		X:      float64(r.Min.X),
		Y:      float64(r.Min.Y),
		Width:  float64(r.Dx()),
		Height: float64(r.Dy()),
	})
	return FromPixels(px, v.ImageW, v.ImageH).Clamp()
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
