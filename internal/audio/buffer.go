// Package audio decodes narration audio into playable buffers and routes it
// through the output graph shared by live monitoring and recording.
package audio

import (
	"time"

	"github.com/gopxl/beep"
)

// PCMSampleRate is the narrator's wire sample rate.
const PCMSampleRate = 24000

// Buffer is decoded audio held in memory. Mono sources are stored with the
// same value in both channels; Channels reports the source channel count.
type Buffer struct {
	format  beep.Format
	samples [][2]float64
}

// NewBuffer wraps decoded samples.
func NewBuffer(format beep.Format, samples [][2]float64) *Buffer {
	return &Buffer{format: format, samples: samples}
}

// Format returns the beep format of the buffer.
func (b *Buffer) Format() beep.Format {
	return b.format
}

// SampleRate returns samples per second.
func (b *Buffer) SampleRate() int {
	return int(b.format.SampleRate)
}

// Channels returns the number of source channels.
func (b *Buffer) Channels() int {
	return b.format.NumChannels
}

// Len returns the number of sample frames.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Samples returns the sample frames. Callers must not modify them.
func (b *Buffer) Samples() [][2]float64 {
	return b.samples
}

// Duration returns the playback length.
func (b *Buffer) Duration() time.Duration {
	if b.format.SampleRate == 0 {
		return 0
	}
	return b.format.SampleRate.D(len(b.samples))
}

// Streamer returns a new independent cursor over the buffer. Several
// streamers over one buffer let a single decode feed several outputs.
func (b *Buffer) Streamer() beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(b.samples) {
			return 0, false
		}
		n := copy(samples, b.samples[pos:])
		pos += n
		return n, true
	})
}
