// Package vision asks a multimodal chat model to split a meme into panels
// and transcribe each one.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"meme-reveal/internal/pipeline"
	"meme-reveal/pkg/geometry"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNoSegments is returned when the model answers without usable panels.
var ErrNoSegments = errors.New("model returned no segments")

const prompt = `Split this meme into its panels in reading order.
For every panel return its transcribed text (empty string if none) and its
bounding box as [ymin, xmin, ymax, xmax] normalized to 0-1000.
Answer with a JSON array only: [{"text": "...", "box_2d": [ymin, xmin, ymax, xmax]}]`

var _ pipeline.RemoteSegmenter = (*Segmenter)(nil)

// Segmenter implements remote segmentation over the chat completions API.
type Segmenter struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
}

// NewSegmenter creates a segmenter. Empty url and token fall back to the
// client defaults.
func NewSegmenter(url, token, model string, limiter *rate.Limiter, client *http.Client) *Segmenter {
	var options []option.RequestOption
	if url != "" {
		options = append(options, option.WithBaseURL(url))
	}
	if token != "" {
		options = append(options, option.WithAPIKey(token))
	}
	if client != nil {
		options = append(options, option.WithHTTPClient(client))
	}

	return &Segmenter{
		client:  openai.NewClient(options...),
		model:   model,
		limiter: limiter,
	}
}

// Segment sends the image and parses the returned panel list.
func (s *Segmenter) Segment(ctx context.Context, data []byte, mimeType string) ([]pipeline.RemoteSegment, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: url,
				}),
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to segment image: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrNoSegments
	}

	content := completion.Choices[0].Message.Content
	log.Debug().Int("chars", len(content)).Str("model", s.model).Msg("Remote segmentation answered")

	return Parse(content)
}

// Parse decodes the model answer, tolerating markdown code fences and prose
// around the JSON array. Entries without a four-element box are dropped.
func Parse(content string) ([]pipeline.RemoteSegment, error) {
	content = stripFences(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, ErrNoSegments
	}

	var raw []struct {
		Text string    `json:"text"`
		Box  []float64 `json:"box_2d"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse segments: %w", err)
	}

	var result []pipeline.RemoteSegment
	for _, r := range raw {
		if len(r.Box) != 4 {
			continue
		}
		result = append(result, pipeline.RemoteSegment{
			Text: r.Text,
			Box:  geometry.NewBoundingBox(r.Box[1], r.Box[0], r.Box[3], r.Box[2]),
		})
	}
	if len(result) == 0 {
		return nil, ErrNoSegments
	}
	return result, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
