package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/source"
)

// Driver polls every target sequentially on a fixed interval.
type Driver struct {
	src      source.DataSource
	watcher  *Watcher
	targets  []*Target
	interval time.Duration
	stats    *Stats
}

// NewDriver builds a Driver. Event counts reach stats only when stats.Record
// is part of w's notify chain. stats may be nil.
func NewDriver(src source.DataSource, w *Watcher, targets []*Target, interval time.Duration, stats *Stats) *Driver {
	if stats == nil {
		stats = NewStats(targets)
	}
	return &Driver{src: src, watcher: w, targets: targets, interval: interval, stats: stats}
}

func (d *Driver) Stats() *Stats { return d.stats }

// Run polls until ctx is cancelled (returns nil) or the terminal link is lost
// (returns the *model.ConnectionError). The source is disconnected on return.
func (d *Driver) Run(ctx context.Context) error {
	defer d.disconnect()

	slog.Info("watching", "targets", len(d.targets), "interval", d.interval)
	for {
		for _, t := range d.targets {
			if ctx.Err() != nil {
				return nil
			}
			if err := d.poll(ctx, t); err != nil {
				return err
			}
		}
		d.stats.tick()
		if !wait(ctx, d.interval) {
			return nil
		}
	}
}

// poll runs one target and returns only fatal errors.
func (d *Driver) poll(ctx context.Context, t *Target) error {
	err := d.watcher.PollOnce(ctx, t)
	if err == nil || ctx.Err() != nil {
		return nil
	}
	d.stats.fail(t, err)
	if model.IsConnection(err) {
		slog.Error("terminal connection lost", "symbol", t.Symbol, "timeframe", t.Timeframe.Code, "error", err)
		return err
	}
	slog.Warn("poll failed", "symbol", t.Symbol, "timeframe", t.Timeframe.Code, "path", t.Path, "error", err)
	return nil
}

// RunOnce exports the history window of every target once and returns.
func (d *Driver) RunOnce(ctx context.Context) error {
	defer d.disconnect()

	var failed, total int
	for _, t := range d.targets {
		if ctx.Err() != nil {
			return nil
		}
		written, err := d.watcher.Export(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.stats.fail(t, err)
			if model.IsConnection(err) {
				return err
			}
			failed++
			slog.Warn("export failed", "symbol", t.Symbol, "timeframe", t.Timeframe.Code, "path", t.Path, "error", err)
			continue
		}
		total += len(written)
	}
	d.stats.tick()
	slog.Info("export done", "targets", len(d.targets), "failed", failed, "candles", total)
	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(d.targets))
	}
	return nil
}

func (d *Driver) disconnect() {
	if err := d.src.Disconnect(); err != nil {
		slog.Debug("disconnect", "source", d.src.Name(), "error", err)
	}
	slog.Info("disconnected", "source", d.src.Name())
}

// wait sleeps for d or until ctx is done. It reports whether to continue.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
