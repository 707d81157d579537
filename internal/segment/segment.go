// Package segment defines the narration unit shared by segmentation, editing,
// rendering and playback. The order of a segment list is the reveal order.
package segment

import (
	"strings"

	"meme-reveal/internal/textutil"
	"meme-reveal/pkg/geometry"

	"github.com/google/uuid"
)

// Placeholder is the text used for regions without legible text.
const Placeholder = "(Visual Only)"

// FallbackDuration is used when a panel's text extraction failed.
const FallbackDuration = 2.0

// AudioFormat tags the wire format of attached audio.
type AudioFormat int

const (
	// FormatNone means no audio is attached.
	FormatNone AudioFormat = iota
	// FormatPCM is raw little-endian signed 16-bit mono at 24 kHz.
	FormatPCM
	// FormatCompressed is container audio (mp3, wav, ogg, flac).
	FormatCompressed
)

func (f AudioFormat) String() string {
	switch f {
	case FormatPCM:
		return "pcm"
	case FormatCompressed:
		return "compressed"
	default:
		return "none"
	}
}

// Audio is narration attached to a segment, kept in its wire form and
// decoded at playback time.
type Audio struct {
	Format AudioFormat `json:"format"`
	Data   []byte      `json:"data"`
}

// Segment is one panel: its box, narration text, optional audio and the
// nominal display duration in seconds.
type Segment struct {
	ID       string               `json:"id"`
	Text     string               `json:"text"`
	Box      geometry.BoundingBox `json:"box"`
	Audio    *Audio               `json:"audio,omitempty"`
	Duration float64              `json:"duration"`
}

// New creates a segment with a fresh id and a duration estimated from text.
// Incoherent or empty text is replaced with the placeholder.
func New(text string, box geometry.BoundingBox) Segment {
	text = strings.TrimSpace(text)
	if !textutil.IsCoherent(text) {
		text = ""
	}
	s := Segment{ID: NewID(), Box: box.Clamp()}
	s.SetText(text)
	return s
}

// NewID returns a unique segment id.
func NewID() string {
	return uuid.NewString()
}

// HasText reports whether the segment carries narratable text.
func (s Segment) HasText() bool {
	t := strings.TrimSpace(s.Text)
	return t != "" && t != Placeholder
}

// HasAudio reports whether audio bytes are attached.
func (s Segment) HasAudio() bool {
	return s.Audio != nil && s.Audio.Format != FormatNone && len(s.Audio.Data) > 0
}

// SetText replaces the text, substituting the placeholder for empty input,
// and re-estimates the duration.
func (s *Segment) SetText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		s.Text = Placeholder
		s.Duration = textutil.MinDuration
		return
	}
	s.Text = text
	s.Duration = textutil.EstimateDuration(text)
}

// NarrationText returns the text to speak, or "" for placeholder segments.
func (s Segment) NarrationText() string {
	if !s.HasText() {
		return ""
	}
	return s.Text
}

// Clone returns a deep copy so snapshots cannot alias attached audio.
func (s Segment) Clone() Segment {
	if s.Audio != nil {
		a := *s.Audio
		a.Data = append([]byte(nil), s.Audio.Data...)
		s.Audio = &a
	}
	return s
}

// Snapshot deep-copies a list for read-only consumers.
func Snapshot(list []Segment) []Segment {
	out := make([]Segment, len(list))
	for i, s := range list {
		out[i] = s.Clone()
	}
	return out
}
