// Package device plays audio on the local output device.
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Speaker is the monitor output. The underlying device is process-wide, so
// it is opened on first use and closed by Close; a later Play reopens it.
type Speaker struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	latency    time.Duration
	open       bool
}

// NewSpeaker creates a speaker at sampleRate with the given buffer latency.
func NewSpeaker(sampleRate int, latency time.Duration) *Speaker {
	if latency <= 0 {
		latency = 100 * time.Millisecond
	}
	return &Speaker{sampleRate: beep.SampleRate(sampleRate), latency: latency}
}

// Play queues s on the device. It does not block.
func (s *Speaker) Play(st beep.Streamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		if err := speaker.Init(s.sampleRate, s.sampleRate.N(s.latency)); err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
		s.open = true
	}
	speaker.Play(st)
	return nil
}

// Stop drops everything queued on the device.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		speaker.Clear()
	}
}

// Close releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		speaker.Clear()
		speaker.Close()
		s.open = false
	}
}
