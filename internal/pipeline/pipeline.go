// Package pipeline turns an image into an ordered segment list: panel
// detection, per-panel text extraction, coherence filtering and duration
// estimation.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"

	memeimage "meme-reveal/internal/image"
	"meme-reveal/internal/panel"
	"meme-reveal/internal/segment"
	"meme-reveal/internal/textutil"
	"meme-reveal/pkg/geometry"

	"github.com/rs/zerolog/log"
)

// TextExtractor is the local OCR collaborator. Its output may be empty or
// noisy and is always passed through the coherence heuristic.
type TextExtractor interface {
	Extract(ctx context.Context, img image.Image) (string, error)
}

// PanelDetector finds panel rectangles in reading order.
type PanelDetector interface {
	Detect(img image.Image) []geometry.RectInt
}

// Pipeline orchestrates local segmentation.
type Pipeline struct {
	detector PanelDetector
	ocr      TextExtractor
}

// New creates a pipeline.
func New(detector PanelDetector, ocr TextExtractor) *Pipeline {
	return &Pipeline{detector: detector, ocr: ocr}
}

// NewDefault creates a pipeline using the panel detector with params.
func NewDefault(params panel.Params, ocr TextExtractor) *Pipeline {
	return New(panel.NewDetector(params), ocr)
}

// Segment decodes image bytes and segments them. A decode failure is the
// only error returned; per-panel failures degrade that panel.
func (p *Pipeline) Segment(ctx context.Context, data []byte) ([]segment.Segment, image.Image, error) {
	img, _, err := memeimage.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to segment image: %w", err)
	}
	segs, err := p.SegmentImage(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	return segs, img, nil
}

// SegmentImage segments an already decoded image. It returns an error only
// when ctx is cancelled before all panels are processed.
func (p *Pipeline) SegmentImage(ctx context.Context, img image.Image) ([]segment.Segment, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	rects := p.detector.Detect(img)
	log.Debug().Int("panels", len(rects)).Int("width", w).Int("height", h).Msg("Panels detected")

	segs := make([]segment.Segment, 0, len(rects))
	for i, r := range rects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		box := r.Normalize(w, h).Clamp()
		raw, err := p.extract(ctx, img, r)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Panel text extraction failed")
			s := segment.New("", box)
			s.Duration = segment.FallbackDuration
			segs = append(segs, s)
			continue
		}
		text := Clean(raw)
		if text == segment.Placeholder {
			text = ""
		}
		segs = append(segs, segment.New(text, box))
	}
	return segs, nil
}

// ScanRegion extracts text from a single box, bypassing panel detection.
// It is used to rescan an existing segment or a newly drawn box. The result
// is coherence-filtered; incoherent text yields the placeholder.
func (p *Pipeline) ScanRegion(ctx context.Context, img image.Image, box geometry.BoundingBox) (string, error) {
	b := img.Bounds()
	r := box.Clamp().ToRectInt(b.Dx(), b.Dy())
	if r.Empty() {
		return segment.Placeholder, nil
	}
	raw, err := p.extract(ctx, img, r)
	if err != nil {
		return "", fmt.Errorf("failed to scan region: %w", err)
	}
	return Clean(raw), nil
}

func (p *Pipeline) extract(ctx context.Context, img image.Image, r geometry.RectInt) (text string, err error) {
	if p.ocr == nil {
		return "", nil
	}
	// Third-party OCR bindings can panic on odd crops; treat that like any
	// other per-panel failure.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("text extraction panicked: %v", rec)
		}
	}()
	return p.ocr.Extract(ctx, memeimage.Crop(img, r))
}

// Clean returns coherent text trimmed, or the placeholder.
func Clean(raw string) string {
	text := strings.Join(strings.Fields(raw), " ")
	if !textutil.IsCoherent(text) {
		return segment.Placeholder
	}
	return text
}
