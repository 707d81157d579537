package render

import (
	"image"
	"sync"
)

// Surface holds the latest composed frame. The render loop is its only
// writer; the preview window and the recorder read snapshots.
type Surface struct {
	mu    sync.RWMutex
	frame *image.RGBA
	seq   uint64
}

// NewSurface creates a surface of the given canvas size.
func NewSurface(width, height int) *Surface {
	return &Surface{frame: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Bounds returns the canvas rectangle.
func (s *Surface) Bounds() image.Rectangle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame.Bounds()
}

// Snapshot copies the current frame.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := image.NewRGBA(s.frame.Bounds())
	copy(out.Pix, s.frame.Pix)
	return out
}

// CopyPix copies the raw RGBA bytes of the current frame into dst, which
// must be at least 4*w*h long, and returns the frame sequence number.
func (s *Surface) CopyPix(dst []byte) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy(dst, s.frame.Pix)
	return s.seq
}

// Seq returns the number of frames presented so far.
func (s *Surface) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

func (s *Surface) present(frame *image.RGBA) {
	s.mu.Lock()
	s.frame = frame
	s.seq++
	s.mu.Unlock()
}
