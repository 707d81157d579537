package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"meme-reveal/internal/audio"
	"meme-reveal/internal/export"
	"meme-reveal/internal/render"
	"meme-reveal/internal/segment"
	"meme-reveal/pkg/geometry"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingRenderer renders a real frame on every reveal change and records
// the reveal indices and revealed counts it saw.
type trackingRenderer struct {
	*render.Loop

	mu       sync.Mutex
	indices  []int
	revealed []int
	playing  []bool
}

func newTrackingRenderer(segs []segment.Segment) *trackingRenderer {
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	l := render.NewLoop(render.Params{CanvasWidth: 30, CanvasHeight: 10, EditFade: 0.3, BorderWidth: 1}, render.DimFilter{})
	l.SetImage(img)
	l.SetSegments(segs)
	return &trackingRenderer{Loop: l}
}

func (r *trackingRenderer) SetRevealIndex(i int) {
	r.Loop.SetRevealIndex(i)
	r.Loop.Render()
	r.mu.Lock()
	r.indices = append(r.indices, i)
	r.revealed = append(r.revealed, r.Loop.RevealedCount())
	r.mu.Unlock()
}

func (r *trackingRenderer) SetPlaying(p bool) {
	r.Loop.SetPlaying(p)
	r.mu.Lock()
	r.playing = append(r.playing, p)
	r.mu.Unlock()
}

type nullOutput struct{}

func (nullOutput) Play(beep.Streamer) error { return nil }

type fakeSpeaker struct {
	mu       sync.Mutex
	spoken   []string
	cancels  int
	failWith error
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.failWith
}

func (s *fakeSpeaker) Cancel() {
	s.mu.Lock()
	s.cancels++
	s.mu.Unlock()
}

type fakeFetcher struct {
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return nil, errors.New("no audio")
}

type fakeCapture struct {
	chunks int
}

func (c *fakeCapture) Stop() (*export.Artifact, error) {
	return &export.Artifact{Filename: "x.webm", Data: make([]byte, c.chunks), Chunks: c.chunks}, nil
}

type fakeRecorder struct {
	err     error
	capture *fakeCapture
}

func (r *fakeRecorder) Start(context.Context, export.VideoSource, export.AudioSource) (export.Capture, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.capture, nil
}

// sleepRecorder records requested waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
	hook  func(n int)
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(n)
	}
	return ctx.Err()
}

func pcm(samples int) []byte {
	return make([]byte, samples*2)
}

func threeSegments() []segment.Segment {
	withAudio := segment.New("has audio attached", geometry.NewBoundingBox(0, 0, 333, 1000))
	withAudio.Audio = &segment.Audio{Format: segment.FormatPCM, Data: pcm(2400)}
	return []segment.Segment{
		withAudio,
		segment.New("spoken locally", geometry.NewBoundingBox(333, 0, 666, 1000)),
		segment.New("", geometry.NewBoundingBox(666, 0, 1000, 1000)),
	}
}

func TestPlayVisitsSegmentsInOrder(t *testing.T) {
	segs := threeSegments()
	r := newTrackingRenderer(segs)
	speaker := &fakeSpeaker{}
	sleeps := &sleepRecorder{}

	c := New(r, audio.NewGraph(48000, nullOutput{}),
		WithSpeaker(speaker),
		WithPause(250*time.Millisecond),
		WithSleeper(sleeps.sleep),
	)

	require.NoError(t, c.Play(context.Background(), segs))

	assert.Equal(t, []int{0, 1, 2}, r.indices)
	for i := 1; i < len(r.revealed); i++ {
		assert.GreaterOrEqual(t, r.revealed[i], r.revealed[i-1])
	}
	assert.Equal(t, []int{1, 2, 3}, r.revealed)

	assert.Equal(t, []string{"spoken locally"}, speaker.spoken)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, // 2400 samples at 24 kHz
		250 * time.Millisecond,
		250 * time.Millisecond, // speech governs its own wait
		time.Second,            // placeholder nominal duration
		250 * time.Millisecond,
	}, sleeps.waits)

	assert.Equal(t, Idle, c.State())
	s := c.Session()
	assert.False(t, s.Active)
	assert.Equal(t, 2, s.CurrentIndex)
	assert.NoError(t, c.LastError())
	assert.Equal(t, []bool{true, false}, r.playing)
}

func TestLocalSpeechFailureDoesNotHang(t *testing.T) {
	segs := []segment.Segment{segment.New("hello there", geometry.FullImage())}
	speaker := &fakeSpeaker{failWith: errors.New("no voice")}
	sleeps := &sleepRecorder{}

	c := New(newTrackingRenderer(segs), audio.NewGraph(48000, nil), WithSpeaker(speaker), WithSleeper(sleeps.sleep))
	require.NoError(t, c.Play(context.Background(), segs))
	assert.Equal(t, []time.Duration{DefaultPause}, sleeps.waits)
}

func TestUndecodableAudioWaitsNominalDuration(t *testing.T) {
	s := segment.New("four words right here", geometry.FullImage())
	s.Audio = &segment.Audio{Format: segment.FormatCompressed, Data: []byte("garbage")}
	segs := []segment.Segment{s}
	sleeps := &sleepRecorder{}

	c := New(newTrackingRenderer(segs), audio.NewGraph(48000, nil), WithSleeper(sleeps.sleep), WithPause(0))
	require.NoError(t, c.Play(context.Background(), segs))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 0}, sleeps.waits)
}

func TestRecordingPermissionDenied(t *testing.T) {
	segs := threeSegments()
	r := newTrackingRenderer(segs)
	rec := &fakeRecorder{err: fmt.Errorf("start ffmpeg: %w", export.ErrPermissionDenied)}
	graph := audio.NewGraph(48000, nil)

	c := New(r, graph, WithRecorder(rec, r.Surface()), WithSleeper((&sleepRecorder{}).sleep))

	var states []State
	c.OnStateChange(func(s State) { states = append(states, s) })

	artifact, err := c.Record(context.Background(), segs)
	assert.Nil(t, artifact)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.True(t, setupErr.PermissionDenied())
	assert.Contains(t, setupErr.Message(), "permission")

	assert.Equal(t, []State{Recording, Idle}, states)
	assert.Equal(t, 0, c.Session().Chunks)
	assert.Empty(t, r.indices)
	assert.Equal(t, err, c.LastError())
	assert.False(t, graph.Capturing())
}

func TestRecordingUnsupportedIsDistinguished(t *testing.T) {
	segs := threeSegments()
	r := newTrackingRenderer(segs)
	c := New(r, audio.NewGraph(48000, nil))

	_, err := c.Record(context.Background(), segs)
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.False(t, setupErr.PermissionDenied())
	assert.ErrorIs(t, err, export.ErrUnsupported)
}

func TestRecordingFetchFailureWaitsNominalDuration(t *testing.T) {
	segs := []segment.Segment{
		segment.New("one two three", geometry.NewBoundingBox(0, 0, 500, 1000)),
		segment.New("four five", geometry.NewBoundingBox(500, 0, 1000, 1000)),
	}
	r := newTrackingRenderer(segs)
	speaker := &fakeSpeaker{}
	fetcher := &fakeFetcher{err: errors.New("503")}
	sleeps := &sleepRecorder{}
	graph := audio.NewGraph(48000, nil)
	rec := &fakeRecorder{capture: &fakeCapture{chunks: 3}}

	c := New(r, graph,
		WithSpeaker(speaker),
		WithFetcher(fetcher),
		WithRecorder(rec, r.Surface()),
		WithPause(200*time.Millisecond),
		WithSleeper(sleeps.sleep),
	)

	artifact, err := c.Record(context.Background(), segs)
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, 3, artifact.Chunks)
	assert.Equal(t, 3, c.Session().Chunks)

	assert.Empty(t, speaker.spoken)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, []time.Duration{
		1500 * time.Millisecond,
		200 * time.Millisecond,
		1000 * time.Millisecond,
		200 * time.Millisecond,
	}, sleeps.waits)
	assert.Equal(t, []int{0, 1}, r.indices)
	assert.False(t, graph.Capturing())
}

type failingOutput struct{}

func (failingOutput) Play(beep.Streamer) error { return errors.New("no audio device") }

type wavFetcher struct {
	data  []byte
	texts []string
}

func (f *wavFetcher) Fetch(_ context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	return f.data, nil
}

// tapRecorder keeps the audio source handed to it so tests can read the
// capture leg while a segment plays.
type tapRecorder struct {
	src export.AudioSource
}

func (r *tapRecorder) Start(_ context.Context, _ export.VideoSource, src export.AudioSource) (export.Capture, error) {
	r.src = src
	return &fakeCapture{chunks: 1}, nil
}

// wav16 encodes mono 16-bit samples of a constant value as a WAV file.
func wav16(sampleRate, samples int, value int16) []byte {
	var b bytes.Buffer
	dataLen := uint32(samples * 2)
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, 36+dataLen)
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, dataLen)
	for i := 0; i < samples; i++ {
		binary.Write(&b, binary.LittleEndian, value)
	}
	return b.Bytes()
}

func peak(src export.AudioSource, n int) float64 {
	out := make([][2]float64, n)
	src.Stream(out)
	top := 0.0
	for _, s := range out {
		if v := s[0]; v > top {
			top = v
		} else if -v > top {
			top = -v
		}
	}
	return top
}

func TestRecordingFetchesNarrationIntoCapture(t *testing.T) {
	segs := []segment.Segment{segment.New("hello there", geometry.FullImage())}
	r := newTrackingRenderer(segs)
	fetcher := &wavFetcher{data: wav16(24000, 12000, 16384)}
	rec := &tapRecorder{}
	sleeps := &sleepRecorder{}

	var captured float64
	sleeps.hook = func(n int) {
		if n == 1 {
			captured = peak(rec.src, 960)
		}
	}

	c := New(r, audio.NewGraph(48000, nullOutput{}),
		WithSpeaker(&fakeSpeaker{}),
		WithFetcher(fetcher),
		WithRecorder(rec, r.Surface()),
		WithPause(250*time.Millisecond),
		WithSleeper(sleeps.sleep),
	)

	artifact, err := c.Record(context.Background(), segs)
	require.NoError(t, err)
	require.NotNil(t, artifact)

	assert.Equal(t, []string{"hello there"}, fetcher.texts)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 250 * time.Millisecond}, sleeps.waits)
	assert.Greater(t, captured, 0.25)
}

func TestRecordingAttachedAudioSurvivesMonitorFailure(t *testing.T) {
	s := segment.New("short", geometry.FullImage())
	s.Audio = &segment.Audio{Format: segment.FormatPCM, Data: bytes.Repeat([]byte{0x00, 0x40}, 72000)}
	segs := []segment.Segment{s}
	r := newTrackingRenderer(segs)
	rec := &tapRecorder{}
	sleeps := &sleepRecorder{}

	var captured float64
	sleeps.hook = func(n int) {
		if n == 1 {
			captured = peak(rec.src, 960)
		}
	}

	c := New(r, audio.NewGraph(48000, failingOutput{}),
		WithRecorder(rec, r.Surface()),
		WithSleeper(sleeps.sleep),
	)

	_, err := c.Record(context.Background(), segs)
	require.NoError(t, err)

	// 72000 samples at 24 kHz, not the 1s nominal duration.
	assert.Equal(t, []time.Duration{3 * time.Second, DefaultPause}, sleeps.waits)
	assert.Greater(t, captured, 0.25)
}

func TestCancelStopsAtSegmentBoundary(t *testing.T) {
	segs := threeSegments()
	r := newTrackingRenderer(segs)
	sleeps := &sleepRecorder{}
	c := New(r, audio.NewGraph(48000, nil), WithSpeaker(&fakeSpeaker{}), WithSleeper(sleeps.sleep))
	sleeps.hook = func(n int) {
		if n == 1 {
			c.Cancel()
		}
	}

	require.NoError(t, c.Play(context.Background(), segs))
	assert.Equal(t, []int{0}, r.indices)
	assert.Equal(t, Idle, c.State())
}

func TestResetCancelsLocalSpeech(t *testing.T) {
	speaker := &fakeSpeaker{}
	c := New(newTrackingRenderer(nil), audio.NewGraph(48000, nil), WithSpeaker(speaker))
	c.Reset()
	assert.Equal(t, 1, speaker.cancels)
}

func TestPlayWhileRunningIsBusy(t *testing.T) {
	segs := threeSegments()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	blocking := func(ctx context.Context, d time.Duration) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}

	c := New(newTrackingRenderer(segs), audio.NewGraph(48000, nil), WithSpeaker(&fakeSpeaker{}), WithSleeper(blocking))

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), segs) }()
	<-entered

	assert.ErrorIs(t, c.Play(context.Background(), segs), ErrBusy)
	assert.Equal(t, Running, c.State())

	close(release)
	require.NoError(t, <-done)
}

func TestContextCancellationEndsRun(t *testing.T) {
	segs := threeSegments()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTrackingRenderer(segs)
	c := New(r, audio.NewGraph(48000, nil))
	err := c.Play(ctx, segs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.indices)
}
