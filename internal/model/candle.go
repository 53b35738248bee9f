package model

import "time"

// Candle represents one closed OHLCV bar as returned by the terminal.
// Shared by source, watch and saver.
type Candle struct {
	OpenTime   time.Time // UTC, start of the bar interval
	Open       float64
	High       float64
	Low        float64
	Close      float64
	TickVolume int64
	Spread     int32 // points, at bar close
	RealVolume int64 // zero when the instrument does not report it
}

// SameBar reports whether c and o identify the same bar of one symbol/timeframe.
func (c Candle) SameBar(o Candle) bool {
	return c.OpenTime.Equal(o.OpenTime)
}

// Latest returns the newest candle of an oldest-first batch.
func Latest(cs []Candle) (Candle, bool) {
	if len(cs) == 0 {
		return Candle{}, false
	}
	return cs[len(cs)-1], true
}
