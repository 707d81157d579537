package pipeline

import (
	"context"

	"meme-reveal/internal/segment"
	"meme-reveal/pkg/geometry"
)

// RemoteSegment is one region returned by a remote segmenter.
type RemoteSegment struct {
	Text string               `json:"text"`
	Box  geometry.BoundingBox `json:"box_2d"`
}

// RemoteSegmenter is the hosted vision collaborator: image bytes in, ordered
// regions out.
type RemoteSegmenter interface {
	Segment(ctx context.Context, data []byte, mimeType string) ([]RemoteSegment, error)
}

// FromRemote converts remote output directly into segments, keeping order.
// Boxes are clamped and text is taken as given; only empty text becomes the
// placeholder.
func FromRemote(results []RemoteSegment) []segment.Segment {
	segs := make([]segment.Segment, 0, len(results))
	for _, r := range results {
		s := segment.Segment{ID: segment.NewID(), Box: r.Box.Clamp()}
		s.SetText(r.Text)
		segs = append(segs, s)
	}
	return segs
}
