package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	chunkSize     = 64 << 10
	audioInterval = 20 * time.Millisecond
	maxStderr     = 8 << 10
)

// VideoSource provides canvas frames. Implemented by the render surface.
type VideoSource interface {
	Bounds() image.Rectangle
	CopyPix(dst []byte) uint64
}

// AudioSource provides the captured narration mix as stereo float samples.
// Implemented by the audio graph tap.
type AudioSource interface {
	Stream(samples [][2]float64) (int, bool)
}

// Capture is a running recording.
type Capture interface {
	// Stop ends the capture and flushes buffered chunks into one artifact.
	Stop() (*Artifact, error)
}

// Options configures the recorder.
type Options struct {
	FFmpegPath string
	FPS        int
	SampleRate int
	Candidates []Container
}

// DefaultOptions returns the default recorder options.
func DefaultOptions() Options {
	return Options{
		FFmpegPath: "ffmpeg",
		FPS:        30,
		SampleRate: 48000,
		Candidates: Candidates,
	}
}

// Recorder starts ffmpeg captures of a video and an audio source.
type Recorder struct {
	opts   Options
	prober Prober
	now    func() time.Time
}

// NewRecorder creates a recorder. A nil prober probes opts.FFmpegPath.
func NewRecorder(opts Options, prober Prober) *Recorder {
	d := DefaultOptions()
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = d.FFmpegPath
	}
	if opts.FPS <= 0 {
		opts.FPS = d.FPS
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = d.SampleRate
	}
	if len(opts.Candidates) == 0 {
		opts.Candidates = d.Candidates
	}
	if prober == nil {
		prober = NewFFmpegProber(opts.FFmpegPath)
	}
	return &Recorder{opts: opts, prober: prober, now: time.Now}
}

// Start negotiates a container and begins capturing. Errors are classified
// as ErrPermissionDenied or ErrUnsupported where possible.
func (r *Recorder) Start(ctx context.Context, video VideoSource, audio AudioSource) (Capture, error) {
	container, err := Negotiate(ctx, r.prober, r.opts.Candidates)
	if err != nil {
		return nil, err
	}

	bounds := video.Bounds()
	args := Args(container, bounds.Dx(), bounds.Dy(), r.opts.FPS, r.opts.SampleRate)

	cmd := exec.Command(r.opts.FFmpegPath, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open video pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open output pipe: %w", err)
	}
	audioR, audioW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open audio pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{audioR}

	c := &ffmpegCapture{
		container: container,
		cmd:       cmd,
		stop:      make(chan struct{}),
		started:   r.now(),
	}
	cmd.Stderr = &limitedBuffer{buf: &c.stderr, max: maxStderr}

	if err := cmd.Start(); err != nil {
		audioR.Close()
		audioW.Close()
		return nil, classify(fmt.Errorf("failed to start ffmpeg: %w", err))
	}
	audioR.Close()

	log.Info().
		Str("container", container.Name).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("fps", r.opts.FPS).
		Msg("Recording started")

	c.writers.Add(2)
	go c.writeVideo(stdin, video, bounds, r.opts.FPS)
	go c.writeAudio(audioW, audio, r.opts.SampleRate)

	c.reader.Add(1)
	go c.readOutput(stdout)

	return c, nil
}

// Args builds the ffmpeg command line: raw RGBA video on stdin, f32le stereo
// audio on fd 3, container bytes on stdout.
func Args(c Container, width, height, fps, sampleRate int) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", strconv.Itoa(width) + "x" + strconv.Itoa(height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-f", "f32le", "-ar", strconv.Itoa(sampleRate), "-ac", "2",
		"-i", "pipe:3",
		"-c:v", c.VideoEncoder,
		"-c:a", c.AudioEncoder,
	}
	args = append(args, c.Args...)
	return append(args, "-f", c.Format, "pipe:1")
}

type ffmpegCapture struct {
	container Container
	cmd       *exec.Cmd
	stop      chan struct{}
	started   time.Time
	writers   sync.WaitGroup
	reader    sync.WaitGroup
	stopOnce  sync.Once

	mu     sync.Mutex
	chunks [][]byte
	stderr bytes.Buffer
	err    error
}

func (c *ffmpegCapture) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *ffmpegCapture) writeVideo(w io.WriteCloser, video VideoSource, bounds image.Rectangle, fps int) {
	defer c.writers.Done()
	defer w.Close()

	frame := make([]byte, 4*bounds.Dx()*bounds.Dy())
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			video.CopyPix(frame)
			if _, err := w.Write(frame); err != nil {
				c.setErr(fmt.Errorf("failed to write video frame: %w", err))
				return
			}
		}
	}
}

func (c *ffmpegCapture) writeAudio(w io.WriteCloser, audio AudioSource, sampleRate int) {
	defer c.writers.Done()
	defer w.Close()

	n := int(time.Duration(sampleRate) * audioInterval / time.Second)
	samples := make([][2]float64, n)
	buf := make([]byte, n*8)
	ticker := time.NewTicker(audioInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			got, _ := audio.Stream(samples)
			for i := got; i < n; i++ {
				samples[i] = [2]float64{}
			}
			for i, s := range samples {
				binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(float32(s[0])))
				binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(float32(s[1])))
			}
			if _, err := w.Write(buf); err != nil {
				c.setErr(fmt.Errorf("failed to write audio: %w", err))
				return
			}
		}
	}
}

func (c *ffmpegCapture) readOutput(r io.Reader) {
	defer c.reader.Done()
	for {
		chunk := make([]byte, chunkSize)
		n, err := r.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk[:n])
			c.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.setErr(fmt.Errorf("failed to read output: %w", err))
			}
			return
		}
	}
}

// Stop closes the inputs, waits for ffmpeg to finish the container and
// joins the collected chunks.
func (c *ffmpegCapture) Stop() (*Artifact, error) {
	c.stopOnce.Do(func() { close(c.stop) })
	c.writers.Wait()
	c.reader.Wait()
	waitErr := c.cmd.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	log.Info().
		Int("chunks", len(c.chunks)).
		Dur("elapsed", time.Since(c.started)).
		Msg("Recording stopped")

	if waitErr != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", waitErr, bytes.TrimSpace(c.stderr.Bytes()))
	}
	if len(c.chunks) == 0 {
		if c.err != nil {
			return nil, c.err
		}
		return nil, errors.New("recording produced no data")
	}

	return &Artifact{
		Container: c.container,
		Filename:  Filename(c.started, c.container.Ext),
		Data:      bytes.Join(c.chunks, nil),
		Chunks:    len(c.chunks),
	}, nil
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}
