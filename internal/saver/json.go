package saver

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"ohlcv-watch/internal/model"
)

// JSONSaver writes candles as JSON Lines, one object per row. JSON Lines has
// no header row; every object carries its own keys.
type JSONSaver struct {
	Location *time.Location
}

func (JSONSaver) Extension() string { return "jsonl" }

func (s JSONSaver) WriteFull(path string, candles []model.Candle) error {
	data, err := s.encode(candles)
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

func (s JSONSaver) AppendRows(path string, candles []model.Candle) error {
	if !Exists(path) {
		return s.WriteFull(path, candles)
	}
	data, err := s.encode(candles)
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

func (s JSONSaver) encode(candles []model.Candle) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range ToRows(candles, s.Location) {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
