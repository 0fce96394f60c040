package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/scopenote/scopenote/internal/api"
	"github.com/scopenote/scopenote/internal/capture"
	"github.com/scopenote/scopenote/internal/diagram"
	"github.com/scopenote/scopenote/internal/realtime"
	"github.com/scopenote/scopenote/internal/session"
	"github.com/scopenote/scopenote/internal/shared"
	"github.com/scopenote/scopenote/internal/termview"
	"go.uber.org/fx"
)

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideAPIClient(cfg *Config) *api.Client {
	return api.NewClient(api.Config{
		BaseURL: cfg.BackendURL,
		Timeout: time.Duration(cfg.RequestTimeoutSec+10) * time.Second,
	})
}

func ProvideView() *termview.View {
	return termview.NewView(os.Stdout)
}

func ProvideFeed() *termview.Feed {
	return termview.NewFeed(os.Stdout)
}

func ProvideEngine(cfg *Config, view *termview.View, log *slog.Logger) (*diagram.Engine, error) {
	mapping, err := diagram.LoadMapping(cfg.MappingPath)
	if err != nil {
		return nil, err
	}
	engine := diagram.NewEngine(view, log)
	engine.SetMapping(mapping)
	engine.SetStageSize(view.StageSize())
	return engine, nil
}

// ProvideCapture degrades to no microphone rather than failing startup:
// dictation is optional, image classification is not.
func ProvideCapture(cfg *Config, log *slog.Logger) capture.Source {
	if cfg.CaptureDevice == "" {
		return nil
	}
	src, err := capture.OpenDevice(cfg.CaptureDevice, cfg.CaptureSampleRate)
	if err != nil {
		log.Warn("capture device unavailable, dictation disabled",
			"device", cfg.CaptureDevice, "error", shared.Detail(err))
		return nil
	}
	return src
}

func ProvideController(
	cfg *Config,
	client *api.Client,
	source capture.Source,
	feed *termview.Feed,
	engine *diagram.Engine,
	log *slog.Logger,
) *session.Controller {
	dial := func(ctx context.Context, sessionID string) (session.Realtime, error) {
		return realtime.Dial(ctx, cfg.RealtimeEndpoint(sessionID), log)
	}
	return session.New(session.Config{
		Backend:        client,
		Dial:           dial,
		Capture:        source,
		Feed:           feed,
		Diagram:        engine,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		SyncDebounce:   time.Duration(cfg.SyncDebounceMs) * time.Millisecond,
	}, log)
}

// StartProcedure opens a session when the app comes up and closes it
// on shutdown, leaving the backend free to generate the note.
func StartProcedure(lc fx.Lifecycle, ctrl *session.Controller, cfg *Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ctrl.Start(ctx, cfg.AutoGenerate)
		},
		OnStop: func(ctx context.Context) error {
			return ctrl.Close(ctx, nil)
		},
	})
}

var ClientModule = fx.Options(
	fx.Provide(
		ProvideAPIClient,
		ProvideView,
		ProvideFeed,
		ProvideEngine,
		ProvideCapture,
		ProvideController,
	),
)

func RunClient() {
	fx.New(
		fx.Provide(LoadConfig, ProvideLogger),
		ClientModule,
		fx.Invoke(StartProcedure),
	).Run()
}
