// Package panel locates comic-style panels in an image by scanning for dark
// dividing lines. It needs no model: the result is a pure function of the
// pixels and the three Params thresholds.
package panel

import (
	"image"

	"meme-reveal/pkg/colorutil"
	"meme-reveal/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// span is a half-open [Start, End) interval along one axis.
type span struct {
	Start, End int
}

func (s span) size() int { return s.End - s.Start }

// Detector finds panel rectangles.
type Detector struct {
	params Params
}

// NewDetector creates a detector with the given parameters.
func NewDetector(params Params) *Detector {
	if params.MinPanelSize < 1 {
		params.MinPanelSize = 1
	}
	return &Detector{params: params}
}

// Params returns the detector configuration.
func (d *Detector) Params() Params {
	return d.params
}

// Detect returns panel rectangles in reading order: row bands top to bottom,
// panels within a band left to right. It never returns an empty slice for a
// non-empty image.
func (d *Detector) Detect(img image.Image) []geometry.RectInt {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	luma := LumaPlane(img)

	// Horizontal dividers over full rows.
	hRuns := dividerRuns(h, func(y int) bool {
		return d.isDivider(luma.RawRowView(y))
	})
	bands := gaps(h, hRuns, d.params.MinPanelSize)

	var panels []geometry.RectInt
	col := make([]float64, h)
	for _, band := range bands {
		sub := luma.Slice(band.Start, band.End, 0, w).(*mat.Dense)
		colBuf := col[:band.size()]

		// Vertical dividers restricted to this band's rows.
		vRuns := dividerRuns(w, func(x int) bool {
			return d.isDivider(mat.Col(colBuf, x, sub))
		})
		for _, cell := range gaps(w, vRuns, d.params.MinPanelSize) {
			panels = append(panels, geometry.RectInt{
				X:      b.Min.X + cell.Start,
				Y:      b.Min.Y + band.Start,
				Width:  cell.size(),
				Height: band.size(),
			})
		}
	}

	if len(panels) == 0 {
		return []geometry.RectInt{{X: b.Min.X, Y: b.Min.Y, Width: w, Height: h}}
	}
	return panels
}

// isDivider reports whether the fraction of dark samples exceeds the density
// threshold.
func (d *Detector) isDivider(line []float64) bool {
	if len(line) == 0 {
		return false
	}
	dark := 0
	for _, v := range line {
		if v < d.params.DarknessThreshold {
			dark++
		}
	}
	return float64(dark)/float64(len(line)) > d.params.DensityThreshold
}

// dividerRuns merges contiguous divider indices into runs.
func dividerRuns(n int, isDivider func(i int) bool) []span {
	var runs []span
	start := -1
	for i := 0; i < n; i++ {
		if isDivider(i) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, span{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, span{Start: start, End: n})
	}
	return runs
}

// gaps returns the content spans between divider runs, including the spans
// between the image edges and the outermost runs. Spans smaller than minSize
// are dropped. With no runs the single span [0, n) is returned.
func gaps(n int, runs []span, minSize int) []span {
	var out []span
	last := 0
	for _, r := range runs {
		if r.Start-last >= minSize {
			out = append(out, span{Start: last, End: r.Start})
		}
		last = r.End
	}
	if n-last >= minSize {
		out = append(out, span{Start: last, End: n})
	}
	return out
}

// LumaPlane computes per-pixel Rec. 601 luma into an h x w matrix.
func LumaPlane(img image.Image) *mat.Dense {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]float64, w*h)

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				data[y*w+x] = colorutil.Luma(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w; x++ {
				data[y*w+x] = colorutil.Luma(row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = float64(src.Pix[y*src.Stride+x])
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[y*w+x] = colorutil.LumaOf(img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	return mat.NewDense(h, w, data)
}
