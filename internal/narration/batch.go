package narration

import (
	"context"
	"fmt"
	"sync"

	"meme-reveal/internal/segment"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
)

// Result reports the outcome for one segment of a batch.
type Result struct {
	Index     int
	SegmentID string
	Skipped   bool // no narratable text
	Err       error
}

// Batch narrates segment lists on a bounded worker pool.
type Batch struct {
	narrator Narrator
	workers  int
}

// NewBatch creates a batch runner with at most workers concurrent requests.
func NewBatch(narrator Narrator, workers int) *Batch {
	if workers < 1 {
		workers = 1
	}
	return &Batch{narrator: narrator, workers: workers}
}

// Run narrates every textual segment and returns a copy of segs with PCM
// audio attached where narration succeeded. Failures never abort the batch;
// they are reported per segment and leave that segment without audio.
func (b *Batch) Run(ctx context.Context, segs []segment.Segment) ([]segment.Segment, []Result) {
	out := segment.Snapshot(segs)
	results := make([]Result, len(segs))

	pool, err := ants.NewPool(b.workers, ants.WithPanicHandler(func(p interface{}) {
		log.Error().Interface("panic", p).Msg("Panic in narration worker")
	}))
	if err != nil {
		for i := range out {
			results[i] = Result{Index: i, SegmentID: out[i].ID, Err: fmt.Errorf("failed to start workers: %w", err)}
		}
		return out, results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range out {
		i := i
		results[i] = Result{Index: i, SegmentID: out[i].ID}

		text := out[i].NarrationText()
		if text == "" {
			results[i].Skipped = true
			continue
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					results[i].Err = fmt.Errorf("narration panicked: %v", p)
				}
			}()

			pcm, err := b.narrator.Narrate(ctx, text)
			if err == nil && len(pcm) < 2 {
				err = ErrEmptyAudio
			}
			if err != nil {
				results[i].Err = err
				log.Warn().Err(err).Int("index", i).Str("segment", out[i].ID).Msg("Narration failed")
				return
			}
			out[i].Audio = &segment.Audio{Format: segment.FormatPCM, Data: pcm}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[i].Err = fmt.Errorf("failed to submit narration: %w", err)
		}
	}
	wg.Wait()

	return out, results
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
