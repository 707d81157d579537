package audio

import (
	"sync"

	"github.com/gopxl/beep"
	"github.com/rs/zerolog/log"
)

// resampleQuality is beep's interpolation quality (1-64).
const resampleQuality = 4

// Output is a live audio destination such as the local speaker.
type Output interface {
	Play(s beep.Streamer) error
}

// Graph is the output mixing graph. Every routed buffer goes to the monitor
// output; while a capture tap is attached the same buffer also feeds the
// capture mixer. Both legs stream from one decoded buffer.
type Graph struct {
	mu      sync.Mutex
	format  beep.Format
	monitor Output
	capture *beep.Mixer
}

// NewGraph creates a stereo graph at sampleRate. monitor may be nil.
func NewGraph(sampleRate int, monitor Output) *Graph {
	return &Graph{
		format:  beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: 2, Precision: 2},
		monitor: monitor,
	}
}

// Format returns the graph's output format.
func (g *Graph) Format() beep.Format {
	return g.format
}

// Route plays buf on the monitor and, if attached, the capture tap. It does
// not block; callers wait for buf.Duration(). While capturing, a monitor
// failure is logged and not returned: the capture leg already holds buf.
func (g *Graph) Route(buf *Buffer) error {
	g.mu.Lock()
	capturing := g.capture != nil
	if capturing {
		g.capture.Add(g.adapt(buf))
	}
	monitor := g.monitor
	g.mu.Unlock()

	if monitor == nil {
		return nil
	}
	if err := monitor.Play(g.adapt(buf)); err != nil {
		if capturing {
			log.Warn().Err(err).Msg("Monitor output failed, narration still captured")
			return nil
		}
		return err
	}
	return nil
}

// adapt returns a streamer over buf at the graph's sample rate.
func (g *Graph) adapt(buf *Buffer) beep.Streamer {
	s := buf.Streamer()
	if buf.Format().SampleRate == g.format.SampleRate {
		return s
	}
	return beep.Resample(resampleQuality, buf.Format().SampleRate, g.format.SampleRate, s)
}

// AttachCapture creates the capture destination and returns a tap reading
// the mixed narration. Attaching again replaces the previous mixer.
func (g *Graph) AttachCapture() *Tap {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.capture = &beep.Mixer{}
	return &Tap{graph: g}
}

// DetachCapture drops the capture destination and anything still queued.
func (g *Graph) DetachCapture() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.capture != nil {
		g.capture.Clear()
	}
	g.capture = nil
}

// Capturing reports whether a capture tap is attached.
func (g *Graph) Capturing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capture != nil
}

// Tap is the capture destination. It always yields samples, producing
// silence while nothing is routed, so it can be read in real time.
type Tap struct {
	graph *Graph
}

// Format returns the tap's format.
func (t *Tap) Format() beep.Format {
	return t.graph.format
}

// Stream implements beep.Streamer.
func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	t.graph.mu.Lock()
	defer t.graph.mu.Unlock()
	n := 0
	if t.graph.capture != nil {
		n, _ = t.graph.capture.Stream(samples)
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (t *Tap) Err() error {
	return nil
}
