package model

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid user input. Raised before any connection attempt.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config %s=%q: %s", e.Field, e.Value, e.Reason)
}

// ConnectionError reports an unreachable or rejecting terminal.
// Code and Message carry the terminal's native error when known.
type ConnectionError struct {
	Code    int
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("terminal connection failed: %d - %s", e.Code, msg)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError reports a failed history fetch for one symbol/timeframe.
type FetchError struct {
	Symbol    string
	Timeframe string
	Code      int
	Message   string
	Err       error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("fetch %s %s: %d - %s", e.Symbol, e.Timeframe, e.Code, msg)
	}
	return fmt.Sprintf("fetch %s %s: %s", e.Symbol, e.Timeframe, msg)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError reports an I/O failure while persisting candles.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
