package saver

import (
	"strconv"
	"time"

	"ohlcv-watch/internal/model"
)

// Header is the fixed column order of every output format.
var Header = []string{"time", "open", "high", "low", "close", "tick_volume", "spread", "real_volume"}

// Row is the serialized form of a candle (JSON Lines, Parquet).
// Field order follows Header.
type Row struct {
	Time       string  `json:"time" parquet:"time"`
	Open       float64 `json:"open" parquet:"open"`
	High       float64 `json:"high" parquet:"high"`
	Low        float64 `json:"low" parquet:"low"`
	Close      float64 `json:"close" parquet:"close"`
	TickVolume int64   `json:"tick_volume" parquet:"tick_volume"`
	Spread     int32   `json:"spread" parquet:"spread"`
	RealVolume int64   `json:"real_volume" parquet:"real_volume"`
}

// ToRows converts candles to rows with time rendered in loc.
func ToRows(candles []model.Candle, loc *time.Location) []Row {
	rows := make([]Row, len(candles))
	for i, c := range candles {
		rows[i] = Row{
			Time:       FormatTime(c.OpenTime, loc),
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			TickVolume: c.TickVolume,
			Spread:     c.Spread,
			RealVolume: c.RealVolume,
		}
	}
	return rows
}

// Record returns the row as CSV fields in Header order.
func (r Row) Record() []string {
	return []string{
		r.Time,
		floatStr(r.Open),
		floatStr(r.High),
		floatStr(r.Low),
		floatStr(r.Close),
		strconv.FormatInt(r.TickVolume, 10),
		strconv.FormatInt(int64(r.Spread), 10),
		strconv.FormatInt(r.RealVolume, 10),
	}
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
