package narration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"
)

var _ Narrator = (*SpeechNarrator)(nil)

// SpeechNarrator narrates through an OpenAI-compatible speech endpoint with
// the "pcm" response format, which is 24 kHz mono s16le.
type SpeechNarrator struct {
	client  openai.Client
	model   string
	voice   string
	limiter *rate.Limiter
}

// SpeechOption configures a SpeechNarrator.
type SpeechOption func(*speechConfig)

type speechConfig struct {
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// WithURL sets the API base URL.
func WithURL(url string) SpeechOption {
	return func(c *speechConfig) { c.url = url }
}

// WithToken sets the API key.
func WithToken(token string) SpeechOption {
	return func(c *speechConfig) { c.token = token }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) SpeechOption {
	return func(c *speechConfig) { c.client = client }
}

// WithLimiter throttles outgoing requests.
func WithLimiter(l *rate.Limiter) SpeechOption {
	return func(c *speechConfig) { c.limiter = l }
}

// NewSpeechNarrator creates a narrator for model and voice.
func NewSpeechNarrator(model, voice string, opts ...SpeechOption) *SpeechNarrator {
	cfg := &speechConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var options []option.RequestOption
	if cfg.url != "" {
		options = append(options, option.WithBaseURL(cfg.url))
	}
	if cfg.token != "" {
		options = append(options, option.WithAPIKey(cfg.token))
	}
	if cfg.client != nil {
		options = append(options, option.WithHTTPClient(cfg.client))
	}

	return &SpeechNarrator{
		client:  openai.NewClient(options...),
		model:   model,
		voice:   voice,
		limiter: cfg.limiter,
	}
}

// Narrate returns raw PCM for text.
func (n *SpeechNarrator) Narrate(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyAudio
	}
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := n.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(n.model),
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(n.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}
	if len(data) < 2 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}
