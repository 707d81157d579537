// Package narration provides the speech collaborators: the remote narrator
// returning raw PCM, the just-in-time free TTS fetcher returning compressed
// audio, the local on-device synthesizer, and batch narration of a segment
// list.
package narration

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned when a speech service answers with no audio.
var ErrEmptyAudio = errors.New("speech service returned no audio")

// Narrator is the remote narrator: text in, raw 24 kHz mono s16le PCM out.
type Narrator interface {
	Narrate(ctx context.Context, text string) ([]byte, error)
}

// Fetcher is the just-in-time narration source used while recording:
// text in, compressed container audio out. Best effort.
type Fetcher interface {
	Fetch(ctx context.Context, text string) ([]byte, error)
}

// Speaker is the local synthesizer. Speak blocks until the utterance ends.
// Its output goes straight to the device and cannot be captured.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
}
