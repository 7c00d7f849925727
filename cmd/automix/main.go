package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/beat"
	"github.com/satindergrewal/automix/internal/compat"
	"github.com/satindergrewal/automix/internal/config"
	"github.com/satindergrewal/automix/internal/logger"
	"github.com/satindergrewal/automix/internal/mixer"
	"github.com/satindergrewal/automix/internal/store"
	"github.com/satindergrewal/automix/internal/tonality"
)

const usage = `automix mixes two tracks, or a whole playlist, with DJ-style transitions.

Usage:
  automix analyze <file>
  automix scan [-j workers] <dir>
  automix evaluate <track_a> <track_b>
  automix mix [-s strategy] [-o output] [-d seconds] <track_a> <track_b>
  automix playlist [-s strategy] [-o output] [-order] <files or dirs...>
  automix cache
  automix strategies
  automix serve

Configuration is read from AUTOMIX_* environment variables.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "serve" {
		serve()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "analyze":
		err = runAnalyze(ctx, args)
	case "scan":
		err = runScan(ctx, args)
	case "evaluate":
		err = runEvaluate(ctx, args)
	case "mix":
		err = runMix(ctx, args)
	case "playlist":
		err = runPlaylist(ctx, args)
	case "cache":
		err = runCache(ctx, args)
	case "strategies":
		err = runStrategies()
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "automix %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// app is the wiring shared by the CLI commands.
type app struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	codec    *audio.FileCodec
	features mixer.FeatureSource
	mixer    *mixer.Mixer
	store    *store.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, codec: audio.NewFileCodec(cfg.FFmpeg, cfg.SampleRate)}
	a.features, a.store, err = newFeatureSource(log, cfg, a.codec)
	if err != nil {
		return nil, err
	}
	a.mixer = mixer.New(log, a.codec, a.features, cfg.MixerConfig())
	return a, nil
}

// newFeatureSource analyzes decoded files, consulting the SQLite cache when
// one is configured. The returned store is nil without a cache.
func newFeatureSource(log *zap.SugaredLogger, cfg config.Config, codec audio.Decoder) (mixer.FeatureSource, *store.Store, error) {
	analyzer := compat.NewAnalyzer(beat.NewAnalyzer(), tonality.NewDetector(), cfg.FeatureWindow)
	direct := mixer.NewDecodingSource(codec, analyzer)
	if cfg.CachePath == "" {
		return direct, nil, nil
	}

	st, err := store.Open(cfg.CachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("feature cache: %w", err)
	}
	log.Debugw("Feature cache opened", "path", cfg.CachePath)
	return store.NewCachedSource(log, st, direct, store.Settings(cfg.SampleRate, cfg.FeatureWindow)), st, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warnw("Feature cache close failed", "error", err)
		}
	}
	a.log.Sync()
}
