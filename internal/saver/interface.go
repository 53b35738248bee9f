package saver

import (
	"fmt"
	"strings"
	"time"

	"ohlcv-watch/internal/model"
)

// Sink persists candle batches for one output path at a time.
// The watcher only depends on this interface; main picks the format.
type Sink interface {
	// WriteFull replaces path with a header plus one row per candle.
	WriteFull(path string, candles []model.Candle) error
	// AppendRows adds rows to path, or behaves as WriteFull when path is missing.
	AppendRows(path string, candles []model.Candle) error
	Extension() string
}

// Formats lists the supported output formats.
var Formats = []string{"csv", "json", "parquet"}

// NewSink creates the implementation for format (csv, json, parquet).
// Timestamps are rendered in loc.
func NewSink(format string, loc *time.Location) (Sink, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return CSVSaver{Location: loc}, nil
	case "json", "jsonl":
		return JSONSaver{Location: loc}, nil
	case "parquet":
		return ParquetSaver{Location: loc}, nil
	default:
		return nil, &model.ConfigError{
			Field:  "format",
			Value:  format,
			Reason: fmt.Sprintf("unsupported format (use: %s)", strings.Join(Formats, ", ")),
		}
	}
}
