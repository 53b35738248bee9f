package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ohlcv-watch/internal/source"
	"ohlcv-watch/internal/watch"
)

// RunFlow connects, runs the driver until interrupt or fatal connection loss,
// then writes the run report. It returns nil after a clean interrupt.
func RunFlow(cfg *Config, src source.DataSource, d *watch.Driver, events *watch.EventLog) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			slog.Info("received signal, graceful shutdown", "sig", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return Run(ctx, cfg, src, d, events)
}

// Run is RunFlow without signal handling; cancel ctx to stop.
func Run(ctx context.Context, cfg *Config, src source.DataSource, d *watch.Driver, events *watch.EventLog) error {
	started := time.Now()
	if err := src.Connect(ctx); err != nil {
		_ = src.Disconnect()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	slog.Info("connected", "source", src.Name(), "bridge", cfg.BridgeURL)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var g errgroup.Group
	if cfg.Heartbeat > 0 && !cfg.Once {
		g.Go(func() error {
			watch.RunHeartbeat(hbCtx, cfg.Heartbeat, d.Stats(), events.Logger())
			return nil
		})
	}
	g.Go(func() error {
		defer stopHeartbeat()
		if cfg.Once {
			return d.RunOnce(ctx)
		}
		return d.Run(ctx)
	})
	err := g.Wait()

	if cfg.Report {
		r := watch.NewRunReport(d.Stats(), started, time.Now(), err)
		if _, werr := watch.WriteRunReport(cfg.OutputDir, r); werr != nil {
			slog.Warn("could not write run report", "error", werr)
		}
	}
	return err
}
