package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"meme-reveal/internal/segment"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmpty is returned for empty or truncated payloads.
	ErrEmpty = errors.New("empty audio payload")
	// ErrUnknownFormat is returned when container audio cannot be sniffed.
	ErrUnknownFormat = errors.New("unknown audio container")
)

const drainChunk = 1024

// Decoder converts attached segment audio into buffers.
type Decoder struct{}

// NewDecoder creates a decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode dispatches on the attachment's format tag.
func (d *Decoder) Decode(a *segment.Audio) (*Buffer, error) {
	if a == nil || len(a.Data) == 0 {
		return nil, ErrEmpty
	}
	switch a.Format {
	case segment.FormatPCM:
		return DecodePCM(a.Data)
	case segment.FormatCompressed:
		return DecodeCompressed(a.Data)
	default:
		return nil, fmt.Errorf("%w: format %s", ErrUnknownFormat, a.Format)
	}
}

// DecodePCM interprets data as little-endian signed 16-bit mono samples at
// 24 kHz, normalized by 32768. A trailing odd byte is ignored.
func DecodePCM(data []byte) (*Buffer, error) {
	n := len(data) / 2
	if n == 0 {
		return nil, ErrEmpty
	}

	mono := make([]float64, n)
	for i := range mono {
		mono[i] = float64(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	floats.Scale(1.0/32768, mono)

	samples := make([][2]float64, n)
	for i, v := range mono {
		samples[i] = [2]float64{v, v}
	}

	format := beep.Format{SampleRate: PCMSampleRate, NumChannels: 1, Precision: 2}
	return NewBuffer(format, samples), nil
}

// DecodeCompressed sniffs the container and decodes it fully.
func DecodeCompressed(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	rc := io.NopCloser(bytes.NewReader(data))

	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch sniff(data) {
	case "mp3":
		stream, format, err = mp3.Decode(rc)
	case "wav":
		stream, format, err = wav.Decode(rc)
	case "ogg":
		stream, format, err = vorbis.Decode(rc)
	case "flac":
		stream, format, err = flac.Decode(rc)
	default:
		return nil, ErrUnknownFormat
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	defer stream.Close()

	samples, err := drain(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return NewBuffer(format, samples), nil
}

func drain(s beep.Streamer) ([][2]float64, error) {
	var out [][2]float64
	chunk := make([][2]float64, drainChunk)
	for {
		n, ok := s.Stream(chunk)
		out = append(out, chunk[:n]...)
		if !ok {
			break
		}
	}
	return out, s.Err()
}

func sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WAVE":
		return "wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	default:
		return ""
	}
}
