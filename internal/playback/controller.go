// Package playback drives the reveal timeline: one segment at a time, in
// list order, waiting on narration before advancing, optionally captured
// into a video container.
package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"meme-reveal/internal/audio"
	"meme-reveal/internal/export"
	"meme-reveal/internal/narration"
	"meme-reveal/internal/segment"
	"meme-reveal/internal/textutil"

	"github.com/rs/zerolog/log"
)

// DefaultPause is the gap inserted between segments.
const DefaultPause = 250 * time.Millisecond

// Renderer is the part of the render loop the timeline drives.
type Renderer interface {
	SetRevealIndex(i int)
	SetPlaying(playing bool)
	SetRecording(recording bool)
}

// Decoder turns an attachment into a playable buffer.
type Decoder interface {
	Decode(a *segment.Audio) (*audio.Buffer, error)
}

// Recorder starts a capture of a video and an audio source.
type Recorder interface {
	Start(ctx context.Context, video export.VideoSource, src export.AudioSource) (export.Capture, error)
}

// Sleeper waits for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Controller.
type Option func(*Controller)

// WithSpeaker sets the local synthesizer used when not recording.
func WithSpeaker(s narration.Speaker) Option {
	return func(c *Controller) { c.speaker = s }
}

// WithFetcher sets the just-in-time narration source used while recording.
func WithFetcher(f narration.Fetcher) Option {
	return func(c *Controller) { c.fetcher = f }
}

// WithRecorder enables recording of video frames from the given source.
func WithRecorder(r Recorder, video export.VideoSource) Option {
	return func(c *Controller) {
		c.recorder = r
		c.video = video
	}
}

// WithDecoder replaces the audio decoder.
func WithDecoder(d Decoder) Option {
	return func(c *Controller) { c.decoder = d }
}

// WithPause sets the inter-segment pause.
func WithPause(d time.Duration) Option {
	return func(c *Controller) { c.pause = d }
}

// WithSleeper replaces the timer used for every wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// Controller is the playback state machine: Idle, then Running or
// Recording, then Idle again. There is no pause or resume.
type Controller struct {
	renderer Renderer
	graph    *audio.Graph
	decoder  Decoder
	speaker  narration.Speaker
	fetcher  narration.Fetcher
	recorder Recorder
	video    export.VideoSource
	pause    time.Duration
	sleep    Sleeper

	cancelled atomic.Bool

	mu        sync.Mutex
	state     State
	session   Session
	lastErr   error
	listeners []func(State)
}

// New creates a controller driving renderer and routing audio through graph.
func New(renderer Renderer, graph *audio.Graph, opts ...Option) *Controller {
	c := &Controller{
		renderer: renderer,
		graph:    graph,
		decoder:  audio.NewDecoder(),
		pause:    DefaultPause,
		sleep:    sleepContext,
		session:  Session{CurrentIndex: -1},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnStateChange registers a listener called after every state transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current or most recent session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastError returns the error that ended the most recent run, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Cancel asks the running timeline to stop at the next segment boundary.
func (c *Controller) Cancel() {
	c.cancelled.Store(true)
}

// Reset cancels the run and any local utterance in flight.
func (c *Controller) Reset() {
	c.Cancel()
	if c.speaker != nil {
		c.speaker.Cancel()
	}
}

// Play runs the timeline with live audio only.
func (c *Controller) Play(ctx context.Context, segs []segment.Segment) error {
	_, err := c.run(ctx, segs, false)
	return err
}

// Record runs the timeline while capturing video and narration, and returns
// the flushed artifact. A *SetupError means no segment was played.
func (c *Controller) Record(ctx context.Context, segs []segment.Segment) (*export.Artifact, error) {
	return c.run(ctx, segs, true)
}

func (c *Controller) run(ctx context.Context, segs []segment.Segment, recording bool) (*export.Artifact, error) {
	state := Running
	if recording {
		state = Recording
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.state = state
	c.session = Session{CurrentIndex: -1, Active: true, Recording: recording}
	c.lastErr = nil
	c.cancelled.Store(false)
	c.mu.Unlock()
	c.emit(state)

	defer c.finish()

	segs = segment.Snapshot(segs)

	var capture export.Capture
	if recording {
		var err error
		capture, err = c.startCapture(ctx)
		if err != nil {
			setupErr := &SetupError{Err: err}
			c.setErr(setupErr)
			log.Error().Err(err).Bool("permission_denied", setupErr.PermissionDenied()).Msg("Recording setup failed")
			return nil, setupErr
		}
	}

	c.renderer.SetRecording(recording)
	c.renderer.SetPlaying(true)

	log.Info().Int("segments", len(segs)).Bool("recording", recording).Msg("Playback started")
	runErr := c.loop(ctx, segs, recording)

	if capture == nil {
		c.setErr(runErr)
		return nil, runErr
	}

	artifact, err := capture.Stop()
	c.graph.DetachCapture()
	if err != nil {
		c.setErr(err)
		return nil, err
	}

	c.mu.Lock()
	c.session.Chunks = artifact.Chunks
	c.mu.Unlock()

	c.setErr(runErr)
	return artifact, runErr
}

func (c *Controller) startCapture(ctx context.Context) (export.Capture, error) {
	if c.recorder == nil || c.video == nil || c.graph == nil {
		return nil, export.ErrUnsupported
	}
	tap := c.graph.AttachCapture()
	capture, err := c.recorder.Start(ctx, c.video, tap)
	if err != nil {
		c.graph.DetachCapture()
		return nil, err
	}
	return capture, nil
}

func (c *Controller) finish() {
	c.renderer.SetPlaying(false)
	c.renderer.SetRecording(false)

	c.mu.Lock()
	c.state = Idle
	c.session.Active = false
	c.mu.Unlock()
	c.emit(Idle)
}

func (c *Controller) loop(ctx context.Context, segs []segment.Segment, recording bool) error {
	for i := range segs {
		if c.cancelled.Load() {
			log.Info().Int("index", i).Msg("Playback cancelled")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		c.session.CurrentIndex = i
		c.mu.Unlock()
		c.renderer.SetRevealIndex(i)

		c.narrate(ctx, i, segs[i], recording)

		if err := c.sleep(ctx, c.pause); err != nil {
			return err
		}
	}
	return nil
}

// narrate resolves the audio source for one segment and waits for it:
// attached audio, then local speech when live, then a just-in-time fetch
// when recording, then the nominal duration in silence.
func (c *Controller) narrate(ctx context.Context, i int, s segment.Segment, recording bool) {
	logger := log.With().Int("index", i).Str("segment", s.ID).Logger()

	switch {
	case s.HasAudio():
		buf, err := c.decoder.Decode(s.Audio)
		if err == nil {
			err = c.play(ctx, buf)
		}
		if err != nil {
			logger.Warn().Err(err).Str("format", s.Audio.Format.String()).Msg("Attached audio failed, waiting nominal duration")
			c.wait(ctx, s)
		}

	case s.HasText() && !recording:
		if c.speaker == nil {
			c.wait(ctx, s)
			return
		}
		if err := c.speaker.Speak(ctx, s.NarrationText()); err != nil {
			logger.Warn().Err(err).Msg("Local speech failed")
		}

	case s.HasText() && recording:
		if err := c.fetchAndPlay(ctx, s); err != nil {
			logger.Warn().Err(err).Msg("Narration fetch failed, waiting nominal duration")
			c.wait(ctx, s)
		}

	default:
		c.wait(ctx, s)
	}
}

func (c *Controller) fetchAndPlay(ctx context.Context, s segment.Segment) error {
	if c.fetcher == nil {
		return errors.New("no narration fetcher configured")
	}
	data, err := c.fetcher.Fetch(ctx, s.NarrationText())
	if err != nil {
		return err
	}
	buf, err := c.decoder.Decode(&segment.Audio{Format: segment.FormatCompressed, Data: data})
	if err != nil {
		return err
	}
	return c.play(ctx, buf)
}

// play routes buf through the graph and waits for its measured duration.
func (c *Controller) play(ctx context.Context, buf *audio.Buffer) error {
	if c.graph == nil {
		return errors.New("no audio graph")
	}
	if err := c.graph.Route(buf); err != nil {
		return err
	}
	return c.sleep(ctx, buf.Duration())
}

func (c *Controller) wait(ctx context.Context, s segment.Segment) {
	d := s.Duration
	if d < textutil.MinDuration {
		d = textutil.MinDuration
	}
	_ = c.sleep(ctx, time.Duration(d*float64(time.Second)))
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Controller) emit(s State) {
	c.mu.Lock()
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
