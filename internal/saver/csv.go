package saver

import (
	"bytes"
	"encoding/csv"
	"io"
	"time"

	"ohlcv-watch/internal/model"
)

// CSVSaver writes candles as CSV (header: time,open,high,low,close,tick_volume,spread,real_volume).
type CSVSaver struct {
	Location *time.Location
}

func (CSVSaver) Extension() string { return "csv" }

func (s CSVSaver) WriteFull(path string, candles []model.Candle) error {
	data, err := s.encode(candles, true)
	if err != nil {
		return &model.WriteError{Path: path, Err: err}
	}
	if err := replaceFile(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return &model.WriteError{Path: path, Err: err}
	}
	return nil
}

func (s CSVSaver) AppendRows(path string, candles []model.Candle) error {
	if !Exists(path) {
		return s.WriteFull(path, candles)
	}
	data, err := s.encode(candles, false)
	if err != nil {
		return &model.WriteError{Path: path, Err: err}
	}
	if err := appendFile(path, data); err != nil {
		if isNotExist(err) {
			return s.WriteFull(path, candles)
		}
		return &model.WriteError{Path: path, Err: err}
	}
	return nil
}

// encode renders all rows up front so a write never leaves a partial row.
func (s CSVSaver) encode(candles []model.Candle, header bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if header {
		if err := w.Write(Header); err != nil {
			return nil, err
		}
	}
	for _, r := range ToRows(candles, s.Location) {
		if err := w.Write(r.Record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
