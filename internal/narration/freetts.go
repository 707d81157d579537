package narration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meme-reveal/internal/textutil"

	"golang.org/x/time/rate"
)

// DefaultFreeTTSURL is a public text-to-speech endpoint returning mp3.
const DefaultFreeTTSURL = "https://api.streamelements.com/kappa/v2/speech?voice={voice}&text={text}"

// maxAudioBytes caps a single fetched clip.
const maxAudioBytes = 16 << 20

var _ Fetcher = (*FreeTTS)(nil)

// FreeTTS fetches narration from a free speech endpoint addressed by a URL
// template with {voice} and {text} placeholders.
type FreeTTS struct {
	template string
	voice    string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewFreeTTS creates a fetcher. An empty template uses DefaultFreeTTSURL.
func NewFreeTTS(template, voice string, timeout time.Duration, limiter *rate.Limiter) *FreeTTS {
	if template == "" {
		template = DefaultFreeTTSURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FreeTTS{
		template: template,
		voice:    voice,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
	}
}

// URL returns the request URL for text after sanitizing it.
func (f *FreeTTS) URL(text string) string {
	r := strings.NewReplacer(
		"{voice}", url.QueryEscape(f.voice),
		"{text}", url.QueryEscape(textutil.Sanitize(text)),
	)
	return r.Replace(f.template)
}

// Fetch downloads compressed audio for text.
func (f *FreeTTS) Fetch(ctx context.Context, text string) ([]byte, error) {
	if textutil.Sanitize(text) == "" {
		return nil, ErrEmptyAudio
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch speech: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}
