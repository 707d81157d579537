package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact is a finished recording.
type Artifact struct {
	Container Container
	Filename  string
	Data      []byte
	Chunks    int // number of output chunks flushed into Data
}

// Filename returns the timestamped artifact name for ext.
func Filename(t time.Time, ext string) string {
	return "meme-reveal-" + t.Format("20060102-150405") + "." + ext
}

// Save writes the artifact into dir and returns its path.
func (a *Artifact) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", classify(fmt.Errorf("failed to create output directory: %w", err))
	}
	path := filepath.Join(dir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0644); err != nil {
		return "", classify(fmt.Errorf("failed to write recording: %w", err))
	}
	return path, nil
}
