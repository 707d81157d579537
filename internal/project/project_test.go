package project

import (
	"os"
	"path/filepath"
	"testing"

	"meme-reveal/internal/segment"
	"meme-reveal/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo"+Extension)

	s := segment.New("hello there", geometry.NewBoundingBox(10, 20, 500, 600))
	s.Audio = &segment.Audio{Format: segment.FormatPCM, Data: []byte{1, 2, 3, 4}}

	p := New("demo")
	p.SetImage(path, filepath.Join(dir, "img", "meme.png"))
	p.Segments = []segment.Segment{s, segment.New("", geometry.FullImage())}
	require.NoError(t, p.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("img", "meme.png"), got.ImagePath)
	assert.Equal(t, filepath.Join(dir, "img", "meme.png"), got.GetImagePath(path))
	require.Len(t, got.Segments, 2)
	assert.Equal(t, s.ID, got.Segments[0].ID)
	assert.Equal(t, s.Box, got.Segments[0].Box)
	assert.Equal(t, []byte{1, 2, 3, 4}, got.Segments[0].Audio.Data)
	assert.Equal(t, segment.FormatPCM, got.Segments[0].Audio.Format)
	assert.Equal(t, segment.Placeholder, got.Segments[1].Text)
}

func TestLoadRepairsSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hand"+Extension)
	raw := `{"version":1,"segments":[{"text":"one two three","box":{"xmin":900,"ymin":-5,"xmax":100,"ymax":2000}}]}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))

	got, err := Load(path)
	require.NoError(t, err)
	seg := got.Segments[0]
	assert.NotEmpty(t, seg.ID)
	assert.True(t, seg.Box.Valid())
	assert.Equal(t, 1.5, seg.Duration)
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future"+Extension)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":99}`), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
