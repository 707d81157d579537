// Package project provides project file handling and persistence.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"meme-reveal/internal/segment"
)

// CurrentVersion is the project file format version written by Save.
const CurrentVersion = 1

// Extension is the project file extension.
const Extension = ".memeproj"

// File represents a meme-reveal project file (.memeproj).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Image path (relative to project file)
	ImagePath string `json:"image,omitempty"`

	// Ordered segments; list order is reveal order.
	Segments []segment.Segment `json:"segments"`

	// User settings
	Settings Settings `json:"settings,omitempty"`
}

// Settings holds per-project narration choices.
type Settings struct {
	Voice    string `json:"voice,omitempty"`
	Narrator string `json:"narrator,omitempty"`
}

// New creates a new project file.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
	}
}

// Load loads a project from a .memeproj file. Segment boxes are clamped on
// load so hand-edited files cannot carry invalid boxes.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	if proj.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported project version %d", proj.Version)
	}

	for i := range proj.Segments {
		s := &proj.Segments[i]
		s.Box = s.Box.Clamp()
		if s.ID == "" {
			s.ID = segment.NewID()
		}
		if s.Duration <= 0 {
			s.SetText(s.Text)
		}
	}

	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()
	p.Version = CurrentVersion

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetImage sets the image path (relative to project).
func (p *File) SetImage(projectPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(projectPath), imagePath)
	if err != nil {
		p.ImagePath = imagePath
	} else {
		p.ImagePath = rel
	}
	p.Modified = time.Now()
}

// GetImagePath returns the absolute path to the image.
func (p *File) GetImagePath(projectPath string) string {
	if p.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(p.ImagePath) {
		return p.ImagePath
	}
	return filepath.Join(filepath.Dir(projectPath), p.ImagePath)
}
