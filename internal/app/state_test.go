package app

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"meme-reveal/internal/pipeline"
	"meme-reveal/internal/segment"
	"meme-reveal/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSegmenter struct {
	segs    []segment.Segment
	err     error
	scan    string
	scanErr error
}

func (s *stubSegmenter) SegmentImage(context.Context, goimage.Image) ([]segment.Segment, error) {
	return s.segs, s.err
}

func (s *stubSegmenter) ScanRegion(context.Context, goimage.Image, geometry.BoundingBox) (string, error) {
	return s.scan, s.scanErr
}

type stubRemote struct {
	results []pipeline.RemoteSegment
	mime    string
}

func (r *stubRemote) Segment(_ context.Context, _ []byte, mimeType string) ([]pipeline.RemoteSegment, error) {
	r.mime = mimeType
	return r.results, nil
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 20, 10))
	draw.Draw(img, img.Bounds(), goimage.NewUniform(color.White), goimage.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "meme.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func threeSegs() []segment.Segment {
	return []segment.Segment{
		segment.New("first one", geometry.NewBoundingBox(0, 0, 300, 1000)),
		segment.New("second one", geometry.NewBoundingBox(300, 0, 600, 1000)),
		segment.New("third one", geometry.NewBoundingBox(600, 0, 1000, 1000)),
	}
}

func loadedState(t *testing.T, seg *stubSegmenter) *State {
	t.Helper()
	s := NewState(seg, nil)
	require.NoError(t, s.LoadImage(writePNG(t, t.TempDir())))
	return s
}

func TestAutoSegmentEmitsSnapshot(t *testing.T) {
	seg := &stubSegmenter{segs: threeSegs()}
	s := loadedState(t, seg)

	var got []segment.Segment
	s.On(EventSegmentsChanged, func(data interface{}) {
		got = data.([]segment.Segment)
	})

	require.NoError(t, s.AutoSegment(context.Background()))
	require.Len(t, got, 3)
	assert.Equal(t, "first one", got[0].Text)
	assert.True(t, s.Modified)
}

func TestAutoSegmentFailureKeepsList(t *testing.T) {
	seg := &stubSegmenter{segs: threeSegs()}
	s := loadedState(t, seg)
	require.NoError(t, s.AutoSegment(context.Background()))

	seg.err = errors.New("decode")
	assert.Error(t, s.AutoSegment(context.Background()))
	assert.Len(t, s.Segments(), 3)
}

func TestAutoSegmentWithoutImage(t *testing.T) {
	s := NewState(&stubSegmenter{}, nil)
	assert.ErrorIs(t, s.AutoSegment(context.Background()), ErrNoImage)
}

func TestApplyRemote(t *testing.T) {
	remote := &stubRemote{results: []pipeline.RemoteSegment{
		{Text: "top text", Box: geometry.NewBoundingBox(0, 0, 1000, 500)},
		{Text: "zzzzzzz", Box: geometry.NewBoundingBox(0, 500, 1000, 1000)},
	}}
	s := NewState(&stubSegmenter{}, remote)
	require.NoError(t, s.LoadImage(writePNG(t, t.TempDir())))

	require.NoError(t, s.ApplyRemote(context.Background()))
	segs := s.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, "top text", segs[0].Text)
	assert.Equal(t, "zzzzzzz", segs[1].Text)
	assert.Equal(t, "image/png", remote.mime)
}

func TestAddSegmentScansRegion(t *testing.T) {
	seg := &stubSegmenter{scan: "drawn by hand"}
	s := loadedState(t, seg)

	added, err := s.AddSegment(context.Background(), geometry.NewBoundingBox(100, 100, 50, 2000))
	require.NoError(t, err)
	assert.Equal(t, "drawn by hand", added.Text)
	assert.True(t, added.Box.Valid())

	seg.scanErr = errors.New("tesseract")
	added, err = s.AddSegment(context.Background(), geometry.FullImage())
	require.NoError(t, err)
	assert.Equal(t, segment.Placeholder, added.Text)
	assert.Len(t, s.Segments(), 2)
}

func TestEditActions(t *testing.T) {
	s := loadedState(t, &stubSegmenter{segs: threeSegs(), scan: "rescanned words"})
	require.NoError(t, s.AutoSegment(context.Background()))
	segs := s.Segments()

	require.NoError(t, s.UpdateText(segs[0].ID, "one two three four five six seven"))
	assert.Equal(t, 2.5, s.Segments()[0].Duration)

	require.NoError(t, s.UpdateText(segs[0].ID, "   "))
	assert.Equal(t, segment.Placeholder, s.Segments()[0].Text)
	assert.Equal(t, 1.0, s.Segments()[0].Duration)

	require.NoError(t, s.UpdateBox(segs[1].ID, geometry.BoundingBox{XMin: -10, YMin: 0, XMax: 1200, YMax: 900}))
	assert.Equal(t, geometry.BoundingBox{XMin: 0, YMin: 0, XMax: 1000, YMax: 900}, s.Segments()[1].Box)

	require.NoError(t, s.Move(segs[2].ID, 0))
	ids := []string{s.Segments()[0].ID, s.Segments()[1].ID, s.Segments()[2].ID}
	assert.Equal(t, []string{segs[2].ID, segs[0].ID, segs[1].ID}, ids)

	require.NoError(t, s.Rescan(context.Background(), segs[1].ID))
	assert.Equal(t, "rescanned words", s.Segments()[2].Text)

	audio := &segment.Audio{Format: segment.FormatPCM, Data: []byte{0, 1}}
	require.NoError(t, s.AttachAudio(segs[1].ID, audio))
	assert.True(t, s.Segments()[2].HasAudio())

	require.NoError(t, s.Delete(segs[0].ID))
	assert.Len(t, s.Segments(), 2)

	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
	assert.ErrorIs(t, s.UpdateText("missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.Move("missing", 1), ErrNotFound)
}

func TestEditTarget(t *testing.T) {
	s := loadedState(t, &stubSegmenter{segs: threeSegs()})
	require.NoError(t, s.AutoSegment(context.Background()))
	segs := s.Segments()

	var targets []string
	s.On(EventEditTargetChanged, func(data interface{}) {
		targets = append(targets, data.(string))
	})

	assert.ErrorIs(t, s.SetEditTarget("missing"), ErrNotFound)
	require.NoError(t, s.SetEditTarget(segs[1].ID))
	assert.Equal(t, segs[1].ID, s.EditTarget())

	require.NoError(t, s.Delete(segs[1].ID))
	assert.Equal(t, "", s.EditTarget())
	assert.Equal(t, []string{segs[1].ID, ""}, targets)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	s := loadedState(t, &stubSegmenter{segs: threeSegs()})
	require.NoError(t, s.AutoSegment(context.Background()))

	snap := s.Segments()
	snap[0].Text = "mutated"
	assert.Equal(t, "first one", s.Segments()[0].Text)
}

func TestReset(t *testing.T) {
	s := loadedState(t, &stubSegmenter{segs: threeSegs()})
	require.NoError(t, s.AutoSegment(context.Background()))

	resets := 0
	s.On(EventReset, func(interface{}) { resets++ })
	s.Reset()

	assert.Equal(t, 1, resets)
	assert.Nil(t, s.Image())
	assert.Empty(t, s.Segments())
	assert.ErrorIs(t, s.AutoSegment(context.Background()), ErrNoImage)
}

func TestSaveAndLoadProject(t *testing.T) {
	dir := t.TempDir()
	s := NewState(&stubSegmenter{segs: threeSegs()}, nil)
	require.NoError(t, s.LoadImage(writePNG(t, dir)))
	require.NoError(t, s.AutoSegment(context.Background()))

	path := filepath.Join(dir, "proj", "demo.memeproj")
	require.NoError(t, s.SaveProject(path))
	assert.False(t, s.Modified)

	loaded := NewState(&stubSegmenter{}, nil)
	var loadedPath string
	loaded.On(EventProjectLoaded, func(data interface{}) { loadedPath = data.(string) })
	require.NoError(t, loaded.LoadProject(path))

	assert.Equal(t, path, loadedPath)
	assert.NotNil(t, loaded.Image())
	assert.Len(t, loaded.Segments(), 3)
	assert.Equal(t, s.Segments()[1].ID, loaded.Segments()[1].ID)
	assert.False(t, loaded.Modified)
}

func TestSegmentEditsEmitModified(t *testing.T) {
	dir := t.TempDir()
	s := NewState(&stubSegmenter{segs: threeSegs()}, nil)
	require.NoError(t, s.LoadImage(writePNG(t, dir)))

	var modified []bool
	s.On(EventModified, func(data interface{}) {
		modified = append(modified, data.(bool))
	})

	require.NoError(t, s.AutoSegment(context.Background()))
	require.NoError(t, s.UpdateText(s.Segments()[0].ID, "new words"))
	require.NoError(t, s.SaveProject(filepath.Join(dir, "m.memeproj")))

	assert.Equal(t, []bool{true, true, false}, modified)
	assert.False(t, s.Modified)
}
