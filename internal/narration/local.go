package narration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

var _ Speaker = (*CommandSpeaker)(nil)

// CommandSpeaker speaks through a local synthesizer binary such as espeak-ng
// or say. The text is written to the synthesizer's stdin, never argv, so
// captions starting with "-" are not parsed as options.
type CommandSpeaker struct {
	command string
	args    []string

	mu      sync.Mutex
	current *exec.Cmd
}

// NewCommandSpeaker creates a speaker running command with args.
func NewCommandSpeaker(command string, args ...string) *CommandSpeaker {
	return &CommandSpeaker{command: command, args: args}
}

// Speak runs the synthesizer and waits for it to exit.
func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = strings.NewReader(text + "\n")

	s.mu.Lock()
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to start speech synthesizer: %w", err)
	}
	s.current = cmd
	s.mu.Unlock()

	err := cmd.Wait()

	s.mu.Lock()
	if s.current == cmd {
		s.current = nil
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("speech synthesizer failed: %w", err)
	}
	return nil
}

// Cancel stops the utterance in flight, if any.
func (s *CommandSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Process != nil {
		_ = s.current.Process.Kill()
	}
	s.current = nil
}
