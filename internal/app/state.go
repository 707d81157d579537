// Package app provides session state, editor actions, and events.
package app

import (
	"context"
	"errors"
	"fmt"
	goimage "image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"meme-reveal/internal/image"
	"meme-reveal/internal/pipeline"
	"meme-reveal/internal/project"
	"meme-reveal/internal/segment"
	"meme-reveal/pkg/geometry"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNoImage is returned by actions that need a loaded image.
	ErrNoImage = errors.New("no image loaded")
	// ErrNotFound is returned when a segment id is unknown.
	ErrNotFound = errors.New("segment not found")
)

// Segmenter is the local segmentation pipeline.
type Segmenter interface {
	SegmentImage(ctx context.Context, img goimage.Image) ([]segment.Segment, error)
	ScanRegion(ctx context.Context, img goimage.Image, box geometry.BoundingBox) (string, error)
}

// State holds the session: the image, the ordered segment list and the
// edit target. It is the only writer of the segment list; readers get
// snapshots through Segments or events.
type State struct {
	mu sync.RWMutex

	// Project
	ProjectPath string
	Modified    bool

	// Image
	imagePath string
	imageData []byte
	image     goimage.Image

	// Segments, in reveal order
	segments   []segment.Segment
	editTarget string

	segmenter Segmenter
	remote    pipeline.RemoteSegmenter

	// Event listeners
	listeners map[EventType][]EventListener
}

// EventType identifies different application events.
type EventType int

const (
	EventProjectLoaded EventType = iota
	EventProjectSaved
	EventImageLoaded
	EventSegmentsChanged
	EventEditTargetChanged
	EventModified
	EventReset
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates a new session state. remote may be nil.
func NewState(segmenter Segmenter, remote pipeline.RemoteSegmenter) *State {
	return &State{
		segmenter: segmenter,
		remote:    remote,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetModified marks the project as modified and emits an event.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}

// Image returns the loaded image, or nil.
func (s *State) Image() goimage.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}

// ImagePath returns the path the image was loaded from.
func (s *State) ImagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imagePath
}

// Segments returns a snapshot of the segment list.
func (s *State) Segments() []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return segment.Snapshot(s.segments)
}

// EditTarget returns the edit target id, or "".
func (s *State) EditTarget() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editTarget
}

// LoadImage loads an image file and clears any existing segments.
func (s *State) LoadImage(path string) error {
	img, data, err := image.Load(path)
	if err != nil {
		return err
	}
	s.SetImage(img, data, path)
	return nil
}

// SetImage installs an already decoded image.
func (s *State) SetImage(img goimage.Image, data []byte, path string) {
	s.mu.Lock()
	s.image = img
	s.imageData = data
	s.imagePath = path
	s.segments = nil
	s.editTarget = ""
	s.mu.Unlock()

	s.Emit(EventImageLoaded, img)
	s.segmentsChanged()
}

// AutoSegment replaces the segment list with the local pipeline's output.
// On failure the previous list is kept.
func (s *State) AutoSegment(ctx context.Context) error {
	img := s.Image()
	if img == nil {
		return ErrNoImage
	}
	segs, err := s.segmenter.SegmentImage(ctx, img)
	if err != nil {
		return err
	}
	s.replace(segs)
	return nil
}

// ApplyRemote replaces the segment list with the remote segmenter's output.
func (s *State) ApplyRemote(ctx context.Context) error {
	if s.remote == nil {
		return errors.New("no remote segmenter configured")
	}
	s.mu.RLock()
	data := s.imageData
	s.mu.RUnlock()
	if len(data) == 0 {
		return ErrNoImage
	}

	results, err := s.remote.Segment(ctx, data, http.DetectContentType(data))
	if err != nil {
		return fmt.Errorf("failed to segment remotely: %w", err)
	}
	s.replace(pipeline.FromRemote(results))
	return nil
}

// SetSegments replaces the whole list, for example with narrated copies.
func (s *State) SetSegments(segs []segment.Segment) {
	s.replace(segs)
}

func (s *State) replace(segs []segment.Segment) {
	s.mu.Lock()
	s.segments = segment.Snapshot(segs)
	if s.indexLocked(s.editTarget) < 0 {
		s.editTarget = ""
	}
	s.mu.Unlock()
	s.segmentsChanged()
}

// AddSegment appends a segment for a user-drawn box and fills its text by
// scanning the region. A failed scan leaves the placeholder.
func (s *State) AddSegment(ctx context.Context, box geometry.BoundingBox) (segment.Segment, error) {
	img := s.Image()
	if img == nil {
		return segment.Segment{}, ErrNoImage
	}

	text, err := s.segmenter.ScanRegion(ctx, img, box)
	if err != nil {
		log.Warn().Err(err).Msg("Region scan failed")
		text = ""
	}
	seg := segment.New(text, box)

	s.mu.Lock()
	s.segments = append(s.segments, seg)
	s.mu.Unlock()
	s.segmentsChanged()
	return seg.Clone(), nil
}

// UpdateText sets a segment's text and re-estimates its duration.
func (s *State) UpdateText(id, text string) error {
	return s.mutate(id, func(seg *segment.Segment) {
		seg.SetText(text)
	})
}

// UpdateBox sets a segment's box, clamped to the normalized range.
func (s *State) UpdateBox(id string, box geometry.BoundingBox) error {
	return s.mutate(id, func(seg *segment.Segment) {
		seg.Box = box.Clamp()
	})
}

// AttachAudio attaches narration to a segment. nil detaches.
func (s *State) AttachAudio(id string, a *segment.Audio) error {
	return s.mutate(id, func(seg *segment.Segment) {
		seg.Audio = a
	})
}

// Rescan re-runs text extraction on a segment's current box.
func (s *State) Rescan(ctx context.Context, id string) error {
	img := s.Image()
	if img == nil {
		return ErrNoImage
	}

	s.mu.RLock()
	i := s.indexLocked(id)
	var box geometry.BoundingBox
	if i >= 0 {
		box = s.segments[i].Box
	}
	s.mu.RUnlock()
	if i < 0 {
		return ErrNotFound
	}

	text, err := s.segmenter.ScanRegion(ctx, img, box)
	if err != nil {
		return fmt.Errorf("failed to rescan region: %w", err)
	}
	return s.UpdateText(id, text)
}

// Move moves a segment to index to, shifting the others. Order is reveal
// order.
func (s *State) Move(id string, to int) error {
	s.mu.Lock()
	from := s.indexLocked(id)
	if from < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	if to < 0 {
		to = 0
	}
	if to >= len(s.segments) {
		to = len(s.segments) - 1
	}
	seg := s.segments[from]
	s.segments = append(s.segments[:from], s.segments[from+1:]...)
	s.segments = append(s.segments[:to], append([]segment.Segment{seg}, s.segments[to:]...)...)
	s.mu.Unlock()

	s.segmentsChanged()
	return nil
}

// Delete removes a segment.
func (s *State) Delete(id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.segments = append(s.segments[:i], s.segments[i+1:]...)
	clearedTarget := s.editTarget == id
	if clearedTarget {
		s.editTarget = ""
	}
	s.mu.Unlock()

	s.segmentsChanged()
	if clearedTarget {
		s.Emit(EventEditTargetChanged, "")
	}
	return nil
}

// SetEditTarget selects a segment for box editing; "" leaves edit mode.
func (s *State) SetEditTarget(id string) error {
	s.mu.Lock()
	if id != "" && s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.editTarget = id
	s.mu.Unlock()

	s.Emit(EventEditTargetChanged, id)
	return nil
}

// Reset clears the session. Listeners tear down whatever depends on it,
// including in-flight playback and local speech.
func (s *State) Reset() {
	s.mu.Lock()
	s.ProjectPath = ""
	s.Modified = false
	s.image = nil
	s.imageData = nil
	s.imagePath = ""
	s.segments = nil
	s.editTarget = ""
	s.mu.Unlock()

	s.Emit(EventReset, nil)
}

// LoadProject loads a project and its image.
func (s *State) LoadProject(path string) error {
	proj, err := project.Load(path)
	if err != nil {
		return err
	}

	if imgPath := proj.GetImagePath(path); imgPath != "" {
		if err := s.LoadImage(imgPath); err != nil {
			return fmt.Errorf("failed to load project image: %w", err)
		}
	}
	s.replace(proj.Segments)

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventModified, false)
	s.Emit(EventProjectLoaded, path)
	return nil
}

// SaveProject saves the session to path.
func (s *State) SaveProject(path string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	proj := project.New(name)

	s.mu.RLock()
	if s.imagePath != "" {
		abs, err := filepath.Abs(s.imagePath)
		if err != nil {
			abs = s.imagePath
		}
		proj.SetImage(path, abs)
	}
	proj.Segments = segment.Snapshot(s.segments)
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := proj.Save(path); err != nil {
		return err
	}

	s.mu.Lock()
	s.ProjectPath = path
	s.Modified = false
	s.mu.Unlock()

	s.Emit(EventModified, false)
	s.Emit(EventProjectSaved, path)
	return nil
}

func (s *State) mutate(id string, fn func(*segment.Segment)) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	fn(&s.segments[i])
	s.mu.Unlock()

	s.segmentsChanged()
	return nil
}

func (s *State) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.segments {
		if s.segments[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) segmentsChanged() {
	s.mu.Lock()
	s.Modified = true
	snapshot := segment.Snapshot(s.segments)
	s.mu.Unlock()

	s.Emit(EventSegmentsChanged, snapshot)
	s.Emit(EventModified, true)
}
