// Package export captures the render surface and the narration mix into a
// single video container using ffmpeg.
package export

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"sync"
)

var (
	// ErrPermissionDenied is returned when capture or saving is not allowed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnsupported is returned when no capture backend or codec is available.
	ErrUnsupported = errors.New("recording is not supported")
)

// Container is one candidate output configuration.
type Container struct {
	Name         string
	Ext          string
	MimeType     string
	Format       string   // ffmpeg muxer
	VideoEncoder string   // ffmpeg encoder name
	AudioEncoder string   // ffmpeg encoder name
	Args         []string // extra output arguments
}

// Candidates is the preference-ordered list of output configurations.
var Candidates = []Container{
	{
		Name:         "webm-vp9",
		Ext:          "webm",
		MimeType:     "video/webm;codecs=vp9,opus",
		Format:       "webm",
		VideoEncoder: "libvpx-vp9",
		AudioEncoder: "libopus",
		Args:         []string{"-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M"},
	},
	{
		Name:         "webm-vp8",
		Ext:          "webm",
		MimeType:     "video/webm;codecs=vp8,opus",
		Format:       "webm",
		VideoEncoder: "libvpx",
		AudioEncoder: "libopus",
		Args:         []string{"-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M"},
	},
	{
		Name:         "mp4-h264",
		Ext:          "mp4",
		MimeType:     "video/mp4",
		Format:       "mp4",
		VideoEncoder: "libx264",
		AudioEncoder: "aac",
		Args:         []string{"-preset", "veryfast", "-pix_fmt", "yuv420p", "-movflags", "frag_keyframe+empty_moov"},
	},
}

// Prober reports which encoders the capture backend supports.
type Prober interface {
	Encoders(ctx context.Context) (map[string]bool, error)
}

// Negotiate returns the first candidate whose encoders are all supported.
func Negotiate(ctx context.Context, p Prober, candidates []Container) (Container, error) {
	encoders, err := p.Encoders(ctx)
	if err != nil {
		return Container{}, classify(err)
	}
	for _, c := range candidates {
		if encoders[c.VideoEncoder] && encoders[c.AudioEncoder] {
			return c, nil
		}
	}
	return Container{}, fmt.Errorf("%w: no supported container among %d candidates", ErrUnsupported, len(candidates))
}

// FFmpegProber lists encoders with `ffmpeg -encoders` once and caches them.
type FFmpegProber struct {
	path string

	once     sync.Once
	encoders map[string]bool
	err      error
}

// NewFFmpegProber creates a prober for the ffmpeg binary at path.
func NewFFmpegProber(path string) *FFmpegProber {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegProber{path: path}
}

// Encoders returns the set of encoder names.
func (p *FFmpegProber) Encoders(ctx context.Context) (map[string]bool, error) {
	p.once.Do(func() {
		out, err := exec.CommandContext(ctx, p.path, "-hide_banner", "-encoders").Output()
		if err != nil {
			p.err = fmt.Errorf("failed to probe encoders: %w", err)
			return
		}
		p.encoders = ParseEncoders(out)
	})
	return p.encoders, p.err
}

// ParseEncoders parses `ffmpeg -encoders` output. Encoder lines start with
// a six character capability column followed by the encoder name.
func ParseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || len(fields[0]) != 6 || fields[1] == "=" {
			continue
		}
		if !strings.ContainsAny(fields[0][:1], "VAS") {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// classify maps process and filesystem errors onto the export sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUnsupported):
		return err
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return err
}
