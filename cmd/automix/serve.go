package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/satindergrewal/automix/internal/audio"
	"github.com/satindergrewal/automix/internal/config"
	"github.com/satindergrewal/automix/internal/logger"
	"github.com/satindergrewal/automix/internal/mixer"
	"github.com/satindergrewal/automix/internal/server"
	"github.com/satindergrewal/automix/internal/stream"
)

func serve() {
	fx.New(serverOptions()).Run()
}

// serverOptions is the dependency graph behind automix serve.
func serverOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			config.Options,
			ProvideLogger,
			ProvideCodec,
			ProvideMixer,
			ProvidePipeline,
			ProvideHTTPStream,
			stream.NewBroadcaster,
			stream.NewWebRTCHandler,
			server.New,
			NewHTTPServer,
		),
		fx.WithLogger(func(log *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Desugar()}
		}),
		fx.Invoke(func(*http.Server) {}),
	)
}

// ProvideLogger builds the logger from configuration.
func ProvideLogger(cfg config.Config) (*zap.SugaredLogger, error) {
	return logger.New(cfg.LogLevel, cfg.LogFormat)
}

func ProvideCodec(cfg config.Config) *audio.FileCodec {
	return audio.NewFileCodec(cfg.FFmpeg, cfg.SampleRate)
}

// ProvideMixer builds the mixer, closing the feature cache on shutdown.
func ProvideMixer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg config.Config, codec *audio.FileCodec) (*mixer.Mixer, error) {
	features, st, err := newFeatureSource(log, cfg, codec)
	if err != nil {
		return nil, err
	}
	if st != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return st.Close() },
		})
	}
	return mixer.New(log, codec, features, cfg.MixerConfig()), nil
}

// ProvidePipeline decodes queued previews at the playback rate.
func ProvidePipeline(log *zap.SugaredLogger, cfg config.Config) *audio.Pipeline {
	return audio.NewPipeline(log, audio.NewFileCodec(cfg.FFmpeg, audio.SampleRate))
}

func ProvideHTTPStream(log *zap.SugaredLogger, cfg config.Config, b *stream.Broadcaster) *stream.HTTPHandler {
	return stream.NewHTTPHandler(log, b, cfg.FFmpeg)
}

// NewHTTPServer starts the preview pipeline and the API server with the app
// lifecycle.
func NewHTTPServer(
	lc fx.Lifecycle,
	log *zap.SugaredLogger,
	cfg config.Config,
	srv *server.Server,
	pipeline *audio.Pipeline,
	broadcaster *stream.Broadcaster,
	webrtc *stream.WebRTCHandler,
) *http.Server {
	hs := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: srv.Router()}
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", hs.Addr)
			if err != nil {
				cancel()
				return err
			}
			go pipeline.Run(runCtx)
			go broadcaster.Run(runCtx, pipeline.Frames())
			go func() {
				if err := hs.Serve(ln); err != nil && err != http.ErrServerClosed {
					log.Errorw("HTTP server stopped", "error", err)
				}
			}()
			log.Infow("automix listening", "addr", hs.Addr, "output_dir", cfg.OutputDir)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			webrtc.Close()
			return hs.Shutdown(ctx)
		},
	})
	return hs
}
