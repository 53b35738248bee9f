package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"ohlcv-watch/internal/app"
	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/slogx"
	"ohlcv-watch/internal/source"
	"ohlcv-watch/internal/watch"
)

// App holds application dependencies built by Wire.
type App struct {
	Config *app.Config
	Source source.DataSource
	Driver *watch.Driver
	Events *watch.EventLog
}

const (
	exitOK         = 0
	exitFailure    = 1
	exitConfigFail = 2
)

func init() {
	slog.SetDefault(slogx.NewDefault("info", "text"))
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	a, cleanup, err := InitializeApp(app.Args(args))
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		slog.Error("failed to initialize app", "error", err)
		if model.IsConfig(err) {
			return exitConfigFail
		}
		return exitFailure
	}
	defer cleanup()

	cfg := a.Config
	slog.SetDefault(slogx.NewDefault(cfg.LogLevel, cfg.LogFormat))
	slog.Debug("effective config\n" + cfg.YAML())
	slog.Info("starting",
		"symbols", cfg.Symbols,
		"timeframes", cfg.Timeframes,
		"policy", cfg.EffectivePolicy(),
		"format", cfg.Format,
		"dir", cfg.OutputDir,
		"timezone", cfg.Timezone,
	)

	if err := app.RunFlow(cfg, a.Source, a.Driver, a.Events); err != nil {
		var ce *model.ConnectionError
		if errors.As(err, &ce) {
			slog.Error("terminal connection failed", "code", ce.Code, "error", err)
		} else {
			slog.Error("run failed", "error", err)
		}
		return exitFailure
	}
	slog.Info("stopped")
	return exitOK
}
