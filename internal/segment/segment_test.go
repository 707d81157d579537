package segment

import (
	"testing"

	"meme-reveal/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubstitutesPlaceholder(t *testing.T) {
	s := New("xkqjrst", geometry.FullImage())

	assert.Equal(t, Placeholder, s.Text)
	assert.False(t, s.HasText())
	assert.Equal(t, 1.0, s.Duration)
	assert.NotEmpty(t, s.ID)
}

func TestNewEstimatesDuration(t *testing.T) {
	s := New("  one two three  ", geometry.BoundingBox{XMin: -5, YMin: 0, XMax: 500, YMax: 1200})

	assert.Equal(t, "one two three", s.Text)
	assert.Equal(t, 1.5, s.Duration)
	assert.True(t, s.Box.Valid())
	assert.Equal(t, "one two three", s.NarrationText())
}

func TestIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New("", geometry.FullImage()).ID
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestSetTextReestimates(t *testing.T) {
	s := New("hi there", geometry.FullImage())
	s.SetText("one two three four five")
	assert.Equal(t, 2.0, s.Duration)

	s.SetText("   ")
	assert.Equal(t, Placeholder, s.Text)
	assert.Equal(t, 1.0, s.Duration)
	assert.Empty(t, s.NarrationText())
}

func TestSnapshotDoesNotAliasAudio(t *testing.T) {
	list := []Segment{New("hello world", geometry.FullImage())}
	list[0].Audio = &Audio{Format: FormatPCM, Data: []byte{1, 2}}

	snap := Snapshot(list)
	snap[0].Audio.Data[0] = 9

	assert.Equal(t, byte(1), list[0].Audio.Data[0])
	assert.True(t, list[0].HasAudio())
	assert.Equal(t, "pcm", FormatPCM.String())
}
