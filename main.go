// Package main provides the entry point for the meme-reveal application.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meme-reveal/internal/app"
	"meme-reveal/internal/audio"
	"meme-reveal/internal/audio/device"
	"meme-reveal/internal/config"
	"meme-reveal/internal/export"
	"meme-reveal/internal/image/blur"
	"meme-reveal/internal/narration"
	"meme-reveal/internal/ocr"
	"meme-reveal/internal/pipeline"
	"meme-reveal/internal/playback"
	"meme-reveal/internal/render"
	"meme-reveal/internal/segment"
	"meme-reveal/internal/version"
	"meme-reveal/internal/vision"
	"meme-reveal/ui/preview"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type options struct {
	configPath  string
	imagePath   string
	projectPath string
	savePath    string
	remote      bool
	narrate     bool
	play        bool
	record      bool
	preview     bool
	showVersion bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Config file (default: user config dir)")
	flag.StringVar(&opts.imagePath, "image", "", "Meme image to segment")
	flag.StringVar(&opts.projectPath, "project", "", "Project file to open instead of -image")
	flag.StringVar(&opts.savePath, "save", "", "Save the session as a project file")
	flag.BoolVar(&opts.remote, "remote", false, "Segment with the hosted vision model instead of OCR")
	flag.BoolVar(&opts.narrate, "narrate", false, "Pre-narrate every segment before playback")
	flag.BoolVar(&opts.play, "play", false, "Play the reveal")
	flag.BoolVar(&opts.record, "record", false, "Record the reveal to a video file")
	flag.BoolVar(&opts.preview, "preview", false, "Show the preview window")
	flag.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if opts.showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level)
	log.Info().Str("version", version.String()).Msg("Starting meme-reveal")

	if opts.imagePath == "" && opts.projectPath == "" {
		fmt.Println("Usage: meme-reveal -image <path> | -project <file> [-remote] [-narrate] [-play|-record] [-preview] [-save out.memeproj]")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		log.Error().Err(err).Msg("meme-reveal failed")
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func limiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func run(ctx context.Context, cfg config.Config, opts options) error {
	engine, err := ocr.NewEngine(cfg.OCR.Language)
	if err != nil {
		return err
	}
	defer engine.Close()

	var remote pipeline.RemoteSegmenter
	if cfg.Narrator.APIKey != "" {
		remote = vision.NewSegmenter(cfg.Vision.URL, cfg.Narrator.APIKey, cfg.Vision.Model,
			limiter(cfg.Vision.RPS), &http.Client{Timeout: 60 * time.Second})
	}
	state := app.NewState(pipeline.NewDefault(cfg.Panel, engine), remote)

	loop := render.NewLoop(cfg.Render.Params, blur.Filter{Sigma: cfg.Render.BlurSigma, Dim: cfg.Render.Dim})
	state.On(app.EventImageLoaded, func(data interface{}) {
		if img, ok := data.(image.Image); ok {
			loop.SetImage(img)
		}
	})
	state.On(app.EventSegmentsChanged, func(data interface{}) {
		loop.SetSegments(data.([]segment.Segment))
	})
	state.On(app.EventEditTargetChanged, func(data interface{}) {
		loop.SetEditTarget(data.(string))
	})

	monitor := device.NewSpeaker(cfg.Export.SampleRate, 100*time.Millisecond)
	defer monitor.Close()
	graph := audio.NewGraph(cfg.Export.SampleRate, monitor)

	recorder := export.NewRecorder(export.Options{
		FFmpegPath: cfg.Export.FFmpegPath,
		FPS:        cfg.Playback.FPS,
		SampleRate: cfg.Export.SampleRate,
		Candidates: export.Candidates,
	}, export.NewFFmpegProber(cfg.Export.FFmpegPath))

	jitURL := cfg.JIT.URL
	if jitURL == "" {
		jitURL = narration.DefaultFreeTTSURL
	}
	controller := playback.New(loop, graph,
		playback.WithSpeaker(narration.NewCommandSpeaker(cfg.Speech.Command, cfg.Speech.Args...)),
		playback.WithFetcher(narration.NewFreeTTS(jitURL, cfg.JIT.Voice, cfg.JIT.Timeout, limiter(cfg.JIT.RPS))),
		playback.WithRecorder(recorder, loop.Surface()),
		playback.WithPause(cfg.Playback.Pause),
	)
	state.On(app.EventReset, func(interface{}) {
		controller.Reset()
	})

	if err := openSession(ctx, state, opts); err != nil {
		return err
	}
	log.Info().Int("segments", len(state.Segments())).Msg("Session ready")

	if opts.narrate {
		if err := narrate(ctx, cfg, state); err != nil {
			return err
		}
	}

	if opts.savePath != "" {
		if err := state.SaveProject(opts.savePath); err != nil {
			return err
		}
		log.Info().Str("path", opts.savePath).Msg("Project saved")
	}

	if !opts.play && !opts.record {
		return nil
	}

	go func() {
		if err := loop.Run(ctx, cfg.Playback.FPS); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("Render loop stopped")
		}
	}()

	reveal := func() error {
		return playReveal(ctx, cfg, opts, state, controller)
	}
	if !opts.preview {
		return reveal()
	}

	a := fyneapp.NewWithID("io.github.meme-reveal")
	a.Settings().SetTheme(&preview.Theme{})
	win := preview.New(a, loop.Surface(), cfg.Playback.FPS)
	win.Track(controller)

	errCh := make(chan error, 1)
	go win.Run(ctx)
	go func() {
		errCh <- reveal()
		win.Close()
	}()
	win.ShowAndRun()
	controller.Cancel()
	return <-errCh
}

func openSession(ctx context.Context, state *app.State, opts options) error {
	if opts.projectPath != "" {
		return state.LoadProject(opts.projectPath)
	}
	if err := state.LoadImage(opts.imagePath); err != nil {
		return err
	}
	if opts.remote {
		return state.ApplyRemote(ctx)
	}
	return state.AutoSegment(ctx)
}

func narrate(ctx context.Context, cfg config.Config, state *app.State) error {
	if cfg.Narrator.APIKey == "" {
		return fmt.Errorf("narration needs an API key in $%s", cfg.Narrator.APIKeyEnv)
	}
	narrator := narration.NewSpeechNarrator(cfg.Narrator.Model, cfg.Narrator.Voice,
		narration.WithURL(cfg.Narrator.URL),
		narration.WithToken(cfg.Narrator.APIKey),
		narration.WithLimiter(limiter(cfg.Narrator.RPS)),
	)
	segs, results := narration.NewBatch(narrator, cfg.Narrator.Workers).Run(ctx, state.Segments())
	if failed := narration.Failed(results); failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(results)).Msg("Some segments were not narrated")
	}
	state.SetSegments(segs)
	return ctx.Err()
}

func playReveal(ctx context.Context, cfg config.Config, opts options, state *app.State, c *playback.Controller) error {
	segs := state.Segments()
	if !opts.record {
		return c.Play(ctx, segs)
	}

	artifact, err := c.Record(ctx, segs)
	var setup *playback.SetupError
	if errors.As(err, &setup) {
		log.Error().Msg(setup.Message())
	}
	if artifact == nil {
		return err
	}
	path, saveErr := artifact.Save(cfg.Export.OutputDir)
	if saveErr != nil {
		return saveErr
	}
	log.Info().Str("path", path).Str("container", artifact.Container.Name).
		Int("bytes", len(artifact.Data)).Msg("Recording saved")
	return err
}
