// Package watch detects newly closed candles and keeps one output file per
// symbol/timeframe up to date.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/saver"
	"ohlcv-watch/internal/source"
	"ohlcv-watch/internal/timeframe"
)

// pollCount is how many recent candles each poll fetches to find the latest close.
const pollCount = 2

// Policy selects how a newly closed candle reaches the output file.
type Policy string

const (
	PolicyAppend  Policy = "append"
	PolicyRefresh Policy = "refresh"
)

// ParsePolicy accepts append or refresh (any case). Empty means append.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyAppend, nil
	case PolicyAppend, PolicyRefresh:
		return p, nil
	default:
		return "", &model.ConfigError{Field: "policy", Value: s, Reason: "must be append or refresh"}
	}
}

// EventKind tells how a close event was written.
type EventKind string

const (
	EventAppend  EventKind = "append"
	EventRefresh EventKind = "refresh"
)

// Event is emitted once per newly closed candle. Seeding never emits.
type Event struct {
	Symbol    string
	Timeframe string
	Kind      EventKind
	OpenTime  time.Time // UTC
	At        time.Time
	Path      string
}

// Target is one symbol/timeframe under observation.
type Target struct {
	Symbol    string
	Timeframe timeframe.Timeframe
	Path      string

	watermark time.Time
	seeded    bool
}

// NewTarget returns a target with an unset watermark.
func NewTarget(symbol string, tf timeframe.Timeframe, path string) *Target {
	return &Target{Symbol: symbol, Timeframe: tf, Path: path}
}

// Watermark returns the open time of the last emitted candle, if any.
func (t *Target) Watermark() (time.Time, bool) {
	return t.watermark, t.seeded
}

func (t *Target) String() string { return t.Symbol + " " + t.Timeframe.Code }

// Watcher runs the bar-close state machine for targets. It holds no
// per-target state; the watermark lives on the Target.
type Watcher struct {
	src    source.DataSource
	sink   saver.Sink
	bars   int
	policy Policy
	notify func(Event)
	now    func() time.Time
}

// NewWatcher builds a Watcher. notify may be nil.
func NewWatcher(src source.DataSource, sink saver.Sink, bars int, policy Policy, notify func(Event)) *Watcher {
	if policy == "" {
		policy = PolicyAppend
	}
	if notify == nil {
		notify = func(Event) {}
	}
	return &Watcher{src: src, sink: sink, bars: bars, policy: policy, notify: notify, now: time.Now}
}

// PollOnce checks t for a newly closed candle and writes it. Errors leave t unchanged.
func (w *Watcher) PollOnce(ctx context.Context, t *Target) error {
	cs, err := w.src.FetchRecent(ctx, t.Symbol, t.Timeframe, pollCount)
	if err != nil {
		return err
	}
	if len(cs) < pollCount {
		slog.Debug("insufficient history", "symbol", t.Symbol, "timeframe", t.Timeframe.Code, "candles", len(cs))
		return nil
	}
	latest, _ := model.Latest(cs)

	if !t.seeded {
		return w.seed(ctx, t, latest)
	}
	if !latest.OpenTime.After(t.watermark) {
		return nil
	}

	kind := EventAppend
	switch {
	case w.policy == PolicyRefresh:
		kind = EventRefresh
		written, err := w.Export(ctx, t)
		if err != nil {
			return err
		}
		latest = newer(latest, written)
	case !saver.Exists(t.Path):
		slog.Warn("output file missing, reseeding", "symbol", t.Symbol, "timeframe", t.Timeframe.Code, "path", t.Path)
		written, err := w.Export(ctx, t)
		if err != nil {
			return err
		}
		t.watermark = newer(latest, written).OpenTime
		return nil
	default:
		if err := w.sink.AppendRows(t.Path, []model.Candle{latest}); err != nil {
			return err
		}
	}

	t.watermark = latest.OpenTime
	w.notify(Event{
		Symbol:    t.Symbol,
		Timeframe: t.Timeframe.Code,
		Kind:      kind,
		OpenTime:  latest.OpenTime,
		At:        w.now(),
		Path:      t.Path,
	})
	return nil
}

// seed records the first observation. A missing output file gets a full export.
func (w *Watcher) seed(ctx context.Context, t *Target, latest model.Candle) error {
	if !saver.Exists(t.Path) {
		written, err := w.Export(ctx, t)
		if err != nil {
			return err
		}
		latest = newer(latest, written)
	}
	t.watermark = latest.OpenTime
	t.seeded = true
	slog.Info("target seeded", "symbol", t.Symbol, "timeframe", t.Timeframe.Code, "watermark", latest.OpenTime)
	return nil
}

// Export fetches the history window and replaces t.Path with it.
// It returns the candles written and does not touch the watermark.
func (w *Watcher) Export(ctx context.Context, t *Target) ([]model.Candle, error) {
	cs, err := w.src.FetchRecent(ctx, t.Symbol, t.Timeframe, w.bars)
	if err != nil {
		return nil, err
	}
	if err := w.sink.WriteFull(t.Path, cs); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("saved %d candles for %s %s", len(cs), t.Symbol, t.Timeframe.Code), "path", t.Path)
	return cs, nil
}

// newer returns the last written candle when a bar closed between the poll
// fetch and the export, so the watermark covers everything in the file.
func newer(latest model.Candle, written []model.Candle) model.Candle {
	if last, ok := model.Latest(written); ok && last.OpenTime.After(latest.OpenTime) {
		return last
	}
	return latest
}
