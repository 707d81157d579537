package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"meme-reveal/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", `[{"text":"a","box_2d":[0,0,500,1000]}]`, 1, false},
		{"fenced", "```json\n[{\"text\":\"a\",\"box_2d\":[0,0,500,1000]},{\"text\":\"\",\"box_2d\":[500,0,1000,1000]}]\n```", 2, false},
		{"prose", `Here you go: [{"text":"a","box_2d":[0,0,10,10]}] enjoy`, 1, false},
		{"bad box dropped", `[{"text":"a","box_2d":[0,0,10]},{"text":"b","box_2d":[0,0,10,10]}]`, 1, false},
		{"no array", `sorry, I cannot help`, 0, true},
		{"all dropped", `[{"text":"a"}]`, 0, true},
		{"broken json", `[{"text":]`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseReordersBoxAxes(t *testing.T) {
	got, err := Parse(`[{"text":"top","box_2d":[0,100,400,900]}]`)
	require.NoError(t, err)
	assert.Equal(t, geometry.BoundingBox{XMin: 100, YMin: 0, XMax: 900, YMax: 400}, got[0].Box)
}

func TestSegmentSendsImageDataURL(t *testing.T) {
	var sawImage bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		raw, _ := io.ReadAll(r.Body)
		sawImage = strings.Contains(string(raw), "data:image/png;base64,")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": "```json\n[{\"text\":\"hello\",\"box_2d\":[0,0,1000,1000]}]\n```",
				},
			}},
		})
	}))
	defer srv.Close()

	s := NewSegmenter(srv.URL+"/v1/", "test", "gpt-4o-mini", nil, nil)
	got, err := s.Segment(context.Background(), []byte("\x89PNG\r\n\x1a\nfake"), "image/png")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
	assert.True(t, sawImage)
}

func TestSegmentRejectsEmptyImage(t *testing.T) {
	s := NewSegmenter("http://127.0.0.1:1/", "test", "m", nil, nil)
	_, err := s.Segment(context.Background(), nil, "image/png")
	assert.Error(t, err)
}
