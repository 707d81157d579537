package playback

import (
	"errors"
	"fmt"

	"meme-reveal/internal/export"
)

// State is the controller state.
type State int

const (
	Idle State = iota
	Running
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Recording:
		return "recording"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrBusy is returned when a run is requested while another is active.
var ErrBusy = errors.New("playback already running")

// Session is the state of one play or record invocation.
type Session struct {
	CurrentIndex int  // -1 before the first segment
	Active       bool // false once the run has finished
	Recording    bool
	Chunks       int // output chunks flushed into the artifact
}

// SetupError reports a recording that could not start. The session returns
// to Idle without visiting any segment.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return "recording setup failed: " + e.Err.Error()
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PermissionDenied reports whether capture was refused rather than
// unavailable.
func (e *SetupError) PermissionDenied() bool {
	return errors.Is(e.Err, export.ErrPermissionDenied)
}

// Message returns a user-facing explanation.
func (e *SetupError) Message() string {
	switch {
	case e.PermissionDenied():
		return "Recording permission was denied. Check that the capture tool and output folder are accessible."
	case errors.Is(e.Err, export.ErrUnsupported):
		return "Recording is not supported here: ffmpeg or a suitable video codec is missing."
	}
	return "Recording could not start: " + e.Err.Error()
}
