package source

import (
	"context"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/timeframe"
)

// DataSource is the abstraction the watcher uses to reach the terminal.
// Implementations are responsible for their own connection handling.
type DataSource interface {
	Name() string
	// Connect opens the terminal session; failures are *model.ConnectionError.
	Connect(ctx context.Context) error
	// FetchRecent returns up to count most-recent closed candles, oldest first, in UTC.
	FetchRecent(ctx context.Context, symbol string, tf timeframe.Timeframe, count int) ([]model.Candle, error)
	// Disconnect is idempotent and safe without a prior successful Connect.
	Disconnect() error
}
