package source

import (
	"fmt"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/timeframe"
)

// Normalize converts open times to UTC and checks the batch is strictly
// increasing. A batch out of order is a fetch failure, never reordered.
func Normalize(symbol string, tf timeframe.Timeframe, cs []model.Candle) ([]model.Candle, error) {
	out := make([]model.Candle, len(cs))
	for i, c := range cs {
		c.OpenTime = c.OpenTime.UTC()
		if i > 0 && c.SameBar(out[i-1]) {
			return nil, &model.FetchError{
				Symbol:    symbol,
				Timeframe: tf.Code,
				Err:       fmt.Errorf("duplicate candle at %d: %s", i, c.OpenTime.Format("2006-01-02T15:04:05Z")),
			}
		}
		if i > 0 && !c.OpenTime.After(out[i-1].OpenTime) {
			return nil, &model.FetchError{
				Symbol:    symbol,
				Timeframe: tf.Code,
				Err: fmt.Errorf("candles out of order at %d: %s after %s",
					i, c.OpenTime.Format("2006-01-02T15:04:05Z"), out[i-1].OpenTime.Format("2006-01-02T15:04:05Z")),
			}
		}
		out[i] = c
	}
	return out, nil
}

// TrimLatest keeps the newest count candles.
func TrimLatest(cs []model.Candle, count int) []model.Candle {
	if count <= 0 || len(cs) <= count {
		return cs
	}
	return cs[len(cs)-count:]
}
