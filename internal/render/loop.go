// Package render composes the reveal frames: a hidden (blurred, dimmed)
// base with clear panels cut in up to the reveal index, or the edit overlay
// for a single target segment.
package render

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	memeimage "meme-reveal/internal/image"
	"meme-reveal/internal/segment"
	"meme-reveal/pkg/colorutil"
	"meme-reveal/pkg/geometry"

	"golang.org/x/image/draw"
)

// Filter produces the hidden layer from the clear layer.
type Filter interface {
	Apply(src *image.RGBA) *image.RGBA
}

// DimFilter is a Filter that only dims. Used when no blur backend is wired.
type DimFilter struct {
	Factor float64
}

// Apply returns a dimmed copy of src.
func (f DimFilter) Apply(src *image.RGBA) *image.RGBA {
	return memeimage.Dim(src, f.Factor)
}

// Params holds rendering parameters.
type Params struct {
	CanvasWidth  int     `yaml:"canvas_width" json:"canvas_width"`
	CanvasHeight int     `yaml:"canvas_height" json:"canvas_height"`
	EditFade     float64 `yaml:"edit_fade" json:"edit_fade"`       // Opacity of the full image in edit mode
	BorderWidth  int     `yaml:"border_width" json:"border_width"` // Highlight and edit border, in canvas pixels
}

// DefaultParams returns default rendering parameters.
func DefaultParams() Params {
	return Params{
		CanvasWidth:  1280,
		CanvasHeight: 720,
		EditFade:     0.35,
		BorderWidth:  4,
	}
}

// Loop owns the render surface and redraws it when its inputs change, and
// every frame while playback is running.
type Loop struct {
	params  Params
	filter  Filter
	surface *Surface
	wake    chan struct{}

	mu         sync.Mutex
	viewport   geometry.Viewport
	clear      *image.RGBA // letterboxed source, full clarity
	hidden     *image.RGBA // filter applied to clear
	faded      *image.RGBA // clear at EditFade over the backdrop
	segments   []segment.Segment
	editTarget string
	reveal     int
	recording  bool
	playing    bool
	revealed   int
}

// NewLoop creates a render loop. A nil filter dims without blurring.
func NewLoop(params Params, filter Filter) *Loop {
	if params.CanvasWidth <= 0 || params.CanvasHeight <= 0 {
		d := DefaultParams()
		params.CanvasWidth, params.CanvasHeight = d.CanvasWidth, d.CanvasHeight
	}
	if filter == nil {
		filter = DimFilter{Factor: 0.5}
	}
	l := &Loop{
		params:  params,
		filter:  filter,
		surface: NewSurface(params.CanvasWidth, params.CanvasHeight),
		wake:    make(chan struct{}, 1),
		reveal:  -1,
	}
	return l
}

// Surface returns the surface frames are presented on.
func (l *Loop) Surface() *Surface {
	return l.surface
}

// Params returns the rendering parameters.
func (l *Loop) Params() Params {
	return l.params
}

// SetImage prepares the clear, hidden and faded layers for img.
func (l *Loop) SetImage(img image.Image) {
	w, h := l.params.CanvasWidth, l.params.CanvasHeight
	canvas := image.Rect(0, 0, w, h)

	var vp geometry.Viewport
	clear := image.NewRGBA(canvas)
	draw.Draw(clear, canvas, image.NewUniform(colorutil.Backdrop), image.Point{}, draw.Src)
	if img != nil {
		b := img.Bounds()
		vp = geometry.Letterbox(w, h, b.Dx(), b.Dy())
		draw.CatmullRom.Scale(clear, vp.ImageRect(), img, b, draw.Src, nil)
	}

	hidden := l.filter.Apply(clear)

	faded := image.NewRGBA(canvas)
	draw.Draw(faded, canvas, image.NewUniform(colorutil.Backdrop), image.Point{}, draw.Src)
	alpha := image.NewUniform(color.Alpha{A: uint8(clamp01(l.params.EditFade) * 255)})
	draw.DrawMask(faded, canvas, clear, image.Point{}, alpha, image.Point{}, draw.Over)

	l.mu.Lock()
	l.viewport = vp
	l.clear, l.hidden, l.faded = clear, hidden, faded
	l.mu.Unlock()
	l.Request()
}

// SetSegments replaces the segment snapshot.
func (l *Loop) SetSegments(segs []segment.Segment) {
	l.mu.Lock()
	l.segments = segment.Snapshot(segs)
	l.mu.Unlock()
	l.Request()
}

// SetEditTarget switches to edit mode for id, or back to playback mode for "".
func (l *Loop) SetEditTarget(id string) {
	l.mu.Lock()
	l.editTarget = id
	l.mu.Unlock()
	l.Request()
}

// SetRevealIndex sets the last revealed segment; -1 reveals nothing.
func (l *Loop) SetRevealIndex(i int) {
	if i < -1 {
		i = -1
	}
	l.mu.Lock()
	l.reveal = i
	l.mu.Unlock()
	l.Request()
}

// RevealIndex returns the current reveal index.
func (l *Loop) RevealIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reveal
}

// SetRecording suppresses the highlight border while capturing.
func (l *Loop) SetRecording(recording bool) {
	l.mu.Lock()
	l.recording = recording
	l.mu.Unlock()
	l.Request()
}

// SetPlaying enables per-frame redraws.
func (l *Loop) SetPlaying(playing bool) {
	l.mu.Lock()
	l.playing = playing
	l.mu.Unlock()
	l.Request()
}

// Playing reports whether per-frame redraws are enabled.
func (l *Loop) Playing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playing
}

// RevealedCount returns how many segments were shown clear in the last
// playback-mode frame.
func (l *Loop) RevealedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revealed
}

// Request schedules a redraw on the next loop iteration.
func (l *Loop) Request() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run redraws on request, and once per frame while playing, until ctx ends.
func (l *Loop) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	l.Render()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.Render()
		case <-ticker.C:
			if l.Playing() {
				l.Render()
			}
		}
	}
}

// Render composes one frame and presents it on the surface.
func (l *Loop) Render() {
	l.mu.Lock()
	defer l.mu.Unlock()

	canvas := image.Rect(0, 0, l.params.CanvasWidth, l.params.CanvasHeight)
	frame := image.NewRGBA(canvas)
	if l.clear == nil {
		draw.Draw(frame, canvas, image.NewUniform(colorutil.Backdrop), image.Point{}, draw.Src)
		l.surface.present(frame)
		return
	}

	if target, ok := l.target(); ok {
		l.renderEdit(frame, target)
	} else {
		l.renderPlayback(frame)
	}
	l.surface.present(frame)
}

func (l *Loop) target() (segment.Segment, bool) {
	if l.editTarget == "" {
		return segment.Segment{}, false
	}
	for _, s := range l.segments {
		if s.ID == l.editTarget {
			return s, true
		}
	}
	return segment.Segment{}, false
}

func (l *Loop) renderEdit(frame *image.RGBA, target segment.Segment) {
	copy(frame.Pix, l.faded.Pix)

	r := l.viewport.BoxToCanvas(target.Box).Intersect(frame.Bounds())
	draw.Draw(frame, r, l.clear, r.Min, draw.Src)
	drawRect(frame, r, l.params.BorderWidth, colorutil.Cyan)
	drawHandles(frame, r, 3*l.params.BorderWidth, colorutil.White)
}

func (l *Loop) renderPlayback(frame *image.RGBA) {
	copy(frame.Pix, l.hidden.Pix)

	revealed := 0
	for i, s := range l.segments {
		if i > l.reveal {
			break
		}
		r := l.viewport.BoxToCanvas(s.Box).Intersect(frame.Bounds())
		draw.Draw(frame, r, l.clear, r.Min, draw.Src)
		revealed++
	}

	if !l.recording && l.reveal >= 0 && l.reveal < len(l.segments) {
		r := l.viewport.BoxToCanvas(l.segments[l.reveal].Box).Intersect(frame.Bounds())
		drawRect(frame, r, l.params.BorderWidth, colorutil.Highlight)
	}
	l.revealed = revealed
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
