// Package preview provides the live preview window for the render surface.
package preview

import (
	"context"
	"fmt"
	"time"

	"meme-reveal/internal/playback"
	"meme-reveal/internal/render"
	"meme-reveal/internal/version"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Window shows the render surface and the playback state.
type Window struct {
	fyne.Window
	surface   *render.Surface
	image     *canvas.Image
	statusBar *widget.Label
	fps       int
}

// New creates a preview window for surface, refreshed fps times a second.
func New(fyneApp fyne.App, surface *render.Surface, fps int) *Window {
	if fps <= 0 {
		fps = 30
	}
	win := fyneApp.NewWindow(fmt.Sprintf("meme-reveal %s", version.Version))

	w := &Window{
		Window:  win,
		surface: surface,
		fps:     fps,
	}
	w.setupUI()
	return w
}

// setupUI creates the layout: the frame with a status bar below.
func (w *Window) setupUI() {
	w.image = canvas.NewImageFromImage(w.surface.Snapshot())
	w.image.FillMode = canvas.ImageFillContain
	w.image.ScaleMode = canvas.ImageScaleFastest

	w.statusBar = widget.NewLabel("Ready")

	content := container.NewBorder(
		nil,                              // top
		container.NewPadded(w.statusBar), // bottom
		nil,                              // left
		nil,                              // right
		w.image,                          // center
	)
	w.SetContent(content)

	b := w.surface.Bounds()
	w.Resize(fyne.NewSize(float32(b.Dx()), float32(b.Dy())+40))
}

// Track shows controller state changes in the status bar.
func (w *Window) Track(c *playback.Controller) {
	c.OnStateChange(func(s playback.State) {
		msg := s.String()
		if err := c.LastError(); err != nil {
			if se, ok := err.(*playback.SetupError); ok {
				msg = se.Message()
			} else {
				msg = fmt.Sprintf("%s: %v", s, err)
			}
		}
		w.statusBar.SetText(msg)
	})
}

// Run repaints whenever the surface has a new frame, until ctx ends.
func (w *Window) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(w.fps))
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if seq := w.surface.Seq(); seq != last {
				last = seq
				w.image.Image = w.surface.Snapshot()
				w.image.Refresh()
			}
		}
	}
}
