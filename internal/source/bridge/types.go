package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ohlcv-watch/internal/model"
)

// Native result codes reported by the terminal (last_error).
const (
	CodeOK                  = 1
	CodeFail                = -1
	CodeInvalidParams       = -2
	CodeNotFound            = -4
	CodeInternalFail        = -10000
	CodeInternalFailSend    = -10001
	CodeInternalFailReceive = -10002
	CodeInternalFailInit    = -10003
	CodeInternalFailConnect = -10004
	CodeInternalFailTimeout = -10005
)

// isLinkCode reports codes that mean the terminal link itself is broken.
func isLinkCode(code int) bool {
	return code <= CodeInternalFailSend && code >= CodeInternalFailTimeout
}

// apiError is the bridge error envelope: {"error":{"code":-10004,"message":"..."}}.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return fmt.Sprintf("%d - %s", e.Code, e.Message) }

// response is shared by every bridge endpoint.
type response struct {
	OK    *bool     `json:"ok,omitempty"`
	Rates []rawRate `json:"rates,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type symbolSelectRequest struct {
	Symbol string `json:"symbol"`
	Enable bool   `json:"enable"`
}

// rawRate is one row of copy_rates_from_pos. Time is epoch seconds (UTC).
type rawRate struct {
	Time       FlexibleInt64 `json:"time"`
	Open       float64       `json:"open"`
	High       float64       `json:"high"`
	Low        float64       `json:"low"`
	Close      float64       `json:"close"`
	TickVolume FlexibleInt64 `json:"tick_volume"`
	Spread     FlexibleInt64 `json:"spread"`
	RealVolume FlexibleInt64 `json:"real_volume"`
}

// ToCandle converts rawRate to model.Candle
func (r rawRate) ToCandle() model.Candle {
	return model.Candle{
		OpenTime:   time.Unix(r.Time.Int64(), 0).UTC(),
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
		TickVolume: r.TickVolume.Int64(),
		Spread:     int32(r.Spread.Int64()),
		RealVolume: r.RealVolume.Int64(),
	}
}

// FlexibleInt64 parses int, float (scientific notation) or numeric string to int64.
// Bridges built on numpy emit uint64 volumes as floats. null decodes to 0.
type FlexibleInt64 int64

// UnmarshalJSON parses int or float
func (f *FlexibleInt64) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*f = 0
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if intVal, err := strconv.ParseInt(str, 10, 64); err == nil {
			*f = FlexibleInt64(intVal)
			return nil
		}
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexibleInt64(int64(val))
		return nil
	}

	var intVal int64
	if err := json.Unmarshal(data, &intVal); err == nil {
		*f = FlexibleInt64(intVal)
		return nil
	}

	var floatVal float64
	if err := json.Unmarshal(data, &floatVal); err == nil {
		*f = FlexibleInt64(int64(floatVal))
		return nil
	}

	return fmt.Errorf("cannot parse as int64: %s", string(data))
}

// Int64 returns int64 value
func (f FlexibleInt64) Int64() int64 {
	return int64(f)
}
