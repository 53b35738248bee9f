package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"ohlcv-watch/internal/saver"
	"ohlcv-watch/internal/slogx"
)

func runLogWriter(lines <-chan string, out io.Writer) {
	for s := range lines {
		fmt.Fprintln(out, s)
	}
}

// EventLog fans close events into one text line each on out.
type EventLog struct {
	lines  chan string
	logger *slog.Logger
	loc    *time.Location
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEventLog starts the writer goroutine. Open times are rendered in loc.
func NewEventLog(out io.Writer, loc *time.Location) *EventLog {
	l := &EventLog{lines: make(chan string, 256), loc: loc}
	l.logger = slogx.NewChanLogger(l.lines)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		runLogWriter(l.lines, out)
	}()
	return l
}

// Logger returns the fan-in logger so heartbeat lines share the event stream.
func (l *EventLog) Logger() *slog.Logger { return l.logger }

// Notify writes ev. Safe for use as the watcher's notify func.
func (l *EventLog) Notify(ev Event) {
	l.logger.Info("bar.closed",
		"symbol", ev.Symbol,
		"timeframe", ev.Timeframe,
		"kind", string(ev.Kind),
		"open_time", saver.FormatTime(ev.OpenTime, l.loc),
		"path", ev.Path,
	)
}

// Close flushes pending lines. Notify must not be called afterwards.
func (l *EventLog) Close() {
	l.once.Do(func() {
		close(l.lines)
		l.wg.Wait()
	})
}

// Fanout calls every non-nil fn in order.
func Fanout(fns ...func(Event)) func(Event) {
	return func(ev Event) {
		for _, fn := range fns {
			if fn != nil {
				fn(ev)
			}
		}
	}
}

// RunHeartbeat logs run totals every interval until ctx is done.
func RunHeartbeat(ctx context.Context, interval time.Duration, stats *Stats, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			polls, events, failures := stats.Totals()
			logger.Info("heartbeat", "polls", polls, "events", events, "failures", failures)
		}
	}
}
