package source

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/timeframe"
)

// Reconnecting is a DataSource that re-opens the terminal session with
// exponential backoff when a fetch fails with *model.ConnectionError.
// It embeds the wrapped DataSource so Name/Connect/Disconnect pass through.
type Reconnecting struct {
	DataSource
	MaxAttempts int // 0 disables reconnects: connection loss stays fatal
	Min         time.Duration
	Max         time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconnecting wraps src. Zero Min/Max fall back to 1s/30s.
func NewReconnecting(src DataSource, attempts int, min, max time.Duration) *Reconnecting {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = 30 * time.Second
	}
	return &Reconnecting{
		DataSource:  src,
		MaxAttempts: attempts,
		Min:         min,
		Max:         max,
		sleep:       sleepCtx,
	}
}

func (r *Reconnecting) FetchRecent(ctx context.Context, symbol string, tf timeframe.Timeframe, count int) ([]model.Candle, error) {
	cs, err := r.DataSource.FetchRecent(ctx, symbol, tf, count)
	if err == nil || r.MaxAttempts <= 0 || !model.IsConnection(err) {
		return cs, err
	}
	if err := r.reconnect(ctx, err); err != nil {
		return nil, err
	}
	return r.DataSource.FetchRecent(ctx, symbol, tf, count)
}

func (r *Reconnecting) reconnect(ctx context.Context, cause error) error {
	b := &backoff.Backoff{Min: r.Min, Max: r.Max, Factor: 2, Jitter: true}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	last := cause
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		wait := b.Duration()
		slog.Warn("terminal link lost, reconnecting",
			"source", r.Name(), "attempt", attempt, "max", r.MaxAttempts, "wait", wait, "error", last)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		_ = r.DataSource.Disconnect()
		if err := r.DataSource.Connect(ctx); err != nil {
			last = err
			continue
		}
		slog.Info("terminal reconnected", "source", r.Name(), "attempt", attempt)
		return nil
	}
	if !model.IsConnection(last) {
		return &model.ConnectionError{Message: "reconnect failed", Err: last}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
