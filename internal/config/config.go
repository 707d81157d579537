// Package config loads meme-reveal settings from YAML with defaults and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meme-reveal/internal/panel"
	"meme-reveal/internal/render"

	"gopkg.in/yaml.v3"
)

const (
	appDir     = "meme-reveal"
	configFile = "config.yaml"
)

// Config is the full application configuration.
type Config struct {
	Panel    panel.Params   `yaml:"panel"`
	Render   RenderConfig   `yaml:"render"`
	Playback PlaybackConfig `yaml:"playback"`
	Narrator NarratorConfig `yaml:"narrator"`
	JIT      JITConfig      `yaml:"jit"`
	Speech   SpeechConfig   `yaml:"speech"`
	Vision   VisionConfig   `yaml:"vision"`
	OCR      OCRConfig      `yaml:"ocr"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

// RenderConfig holds canvas and hidden-layer settings.
type RenderConfig struct {
	render.Params `yaml:",inline"`

	BlurSigma float64 `yaml:"blur_sigma"`
	Dim       float64 `yaml:"dim"`
}

// PlaybackConfig holds timeline settings.
type PlaybackConfig struct {
	Pause time.Duration `yaml:"pause"`
	FPS   int           `yaml:"fps"`
}

// NarratorConfig configures the remote narrator.
type NarratorConfig struct {
	URL       string  `yaml:"url"`
	Model     string  `yaml:"model"`
	Voice     string  `yaml:"voice"`
	APIKeyEnv string  `yaml:"api_key_env"`
	APIKey    string  `yaml:"-"`
	RPS       float64 `yaml:"rps"`
	Workers   int     `yaml:"workers"`
}

// JITConfig configures the just-in-time free TTS source.
type JITConfig struct {
	URL     string        `yaml:"url"`
	Voice   string        `yaml:"voice"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     float64       `yaml:"rps"`
}

// SpeechConfig configures the local synthesizer command.
type SpeechConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// VisionConfig configures the remote segmenter.
type VisionConfig struct {
	URL   string  `yaml:"url"`
	Model string  `yaml:"model"`
	RPS   float64 `yaml:"rps"`
}

// OCRConfig configures local text extraction.
type OCRConfig struct {
	Language string `yaml:"language"`
}

// ExportConfig configures recording.
type ExportConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path"`
	OutputDir  string `yaml:"output_dir"`
	SampleRate int    `yaml:"sample_rate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Panel: panel.DefaultParams(),
		Render: RenderConfig{
			Params:    render.DefaultParams(),
			BlurSigma: 12,
			Dim:       0.55,
		},
		Playback: PlaybackConfig{
			Pause: 250 * time.Millisecond,
			FPS:   30,
		},
		Narrator: NarratorConfig{
			URL:       "https://api.openai.com/v1/",
			Model:     "tts-1",
			Voice:     "alloy",
			APIKeyEnv: "OPENAI_API_KEY",
			RPS:       2,
			Workers:   4,
		},
		JIT: JITConfig{
			Voice:   "Brian",
			Timeout: 15 * time.Second,
			RPS:     1,
		},
		Speech: SpeechConfig{
			Command: "espeak-ng",
		},
		Vision: VisionConfig{
			URL:   "https://api.openai.com/v1/",
			Model: "gpt-4o-mini",
			RPS:   1,
		},
		OCR: OCRConfig{
			Language: "eng",
		},
		Export: ExportConfig{
			FFmpegPath: "ffmpeg",
			OutputDir:  ".",
			SampleRate: 48000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir, configFile)
}

// Load reads path over the defaults. An empty path uses DefaultPath, and a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if c.Narrator.APIKeyEnv != "" {
		c.Narrator.APIKey = os.Getenv(c.Narrator.APIKeyEnv)
	}
	if level := os.Getenv("MEME_REVEAL_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// Validate checks ranges the components rely on.
func (c Config) Validate() error {
	var errs []error
	if c.Panel.DensityThreshold <= 0 || c.Panel.DensityThreshold > 1 {
		errs = append(errs, fmt.Errorf("panel.density_threshold must be in (0,1], got %v", c.Panel.DensityThreshold))
	}
	if c.Panel.MinPanelSize < 1 {
		errs = append(errs, fmt.Errorf("panel.min_panel_size must be positive, got %d", c.Panel.MinPanelSize))
	}
	if c.Render.CanvasWidth < 1 || c.Render.CanvasHeight < 1 {
		errs = append(errs, fmt.Errorf("render canvas must be positive, got %dx%d", c.Render.CanvasWidth, c.Render.CanvasHeight))
	}
	if c.Playback.FPS < 1 {
		errs = append(errs, fmt.Errorf("playback.fps must be positive, got %d", c.Playback.FPS))
	}
	if c.Playback.Pause < 0 {
		errs = append(errs, fmt.Errorf("playback.pause must not be negative"))
	}
	if c.Export.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("export.sample_rate too low: %d", c.Export.SampleRate))
	}
	return errors.Join(errs...)
}
