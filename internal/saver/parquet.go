package saver

import (
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"ohlcv-watch/internal/model"
)

// ParquetSaver writes candles as a Parquet file with the Row schema.
// Parquet files cannot be appended in place; AppendRows rewrites the file.
type ParquetSaver struct {
	Location *time.Location
}

func (ParquetSaver) Extension() string { return "parquet" }

func (s ParquetSaver) WriteFull(path string, candles []model.Candle) error {
	return s.writeRows(path, ToRows(candles, s.Location))
}

func (s ParquetSaver) AppendRows(path string, candles []model.Candle) error {
	if !Exists(path) {
		return s.WriteFull(path, candles)
	}
	existing, err := parquet.ReadFile[Row](path)
	if err != nil {
		return &model.WriteError{Path: path, Err: err}
	}
	return s.writeRows(path, append(existing, ToRows(candles, s.Location)...))
}

func (s ParquetSaver) writeRows(path string, rows []Row) error {
	if err := replaceFile(path, func(w io.Writer) error {
		return parquet.Write(w, rows)
	}); err != nil {
		return &model.WriteError{Path: path, Err: err}
	}
	return nil
}
