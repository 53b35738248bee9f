package app

import (
	"os"
	"time"

	"ohlcv-watch/internal/saver"
	"ohlcv-watch/internal/source"
	"ohlcv-watch/internal/source/bridge"
	"ohlcv-watch/internal/watch"
)

// Args are the command-line arguments without the program name.
type Args []string

// ProvideConfig loads config from args, env and the optional config file (for Wire).
func ProvideConfig(args Args) (*Config, error) {
	return LoadConfig(args)
}

// ProvideLocation resolves the display timezone (for Wire).
func ProvideLocation(cfg *Config) (*time.Location, error) {
	return saver.ResolveZone(cfg.Timezone)
}

// ProvideSink creates the output sink for cfg.Format (for Wire).
func ProvideSink(cfg *Config, loc *time.Location) (saver.Sink, error) {
	return saver.NewSink(cfg.Format, loc)
}

// ProvideBridgeClient creates the terminal bridge client (for Wire). No I/O happens here.
func ProvideBridgeClient(cfg *Config) (*bridge.Client, error) {
	return bridge.New(bridge.Options{
		BaseURL:  cfg.BridgeURL,
		Timeout:  cfg.BridgeTimeout,
		RPS:      cfg.BridgeRPS,
		StartPos: cfg.StartPos,
	})
}

// ProvideDataSource wraps the bridge client with reconnect-with-backoff (for Wire).
func ProvideDataSource(cfg *Config, c *bridge.Client) *source.Reconnecting {
	return source.NewReconnecting(c, cfg.ReconnectAttempts, cfg.ReconnectMin, cfg.ReconnectMax)
}

// ProvideTargets renders one target per symbol and timeframe (for Wire).
func ProvideTargets(cfg *Config, sink saver.Sink) ([]*watch.Target, error) {
	return BuildTargets(cfg, sink.Extension())
}

// ProvideEventLog starts the stdout event stream. The cleanup flushes it (for Wire).
func ProvideEventLog(loc *time.Location) (*watch.EventLog, func()) {
	l := watch.NewEventLog(os.Stdout, loc)
	return l, l.Close
}

// ProvideStats creates the per-target counters shared by watcher, driver and report (for Wire).
func ProvideStats(targets []*watch.Target) *watch.Stats {
	return watch.NewStats(targets)
}

// ProvideWatcher creates the bar-close watcher. Close events reach stats and
// the event stream (for Wire).
func ProvideWatcher(cfg *Config, src source.DataSource, sink saver.Sink, events *watch.EventLog, stats *watch.Stats) *watch.Watcher {
	return watch.NewWatcher(src, sink, cfg.Bars, cfg.EffectivePolicy(), watch.Fanout(stats.Record, events.Notify))
}

// ProvideDriver creates the poll loop (for Wire).
func ProvideDriver(cfg *Config, src source.DataSource, w *watch.Watcher, targets []*watch.Target, stats *watch.Stats) *watch.Driver {
	return watch.NewDriver(src, w, targets, cfg.Interval(), stats)
}
