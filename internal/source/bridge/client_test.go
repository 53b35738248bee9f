package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/timeframe"
)

type fakeBridge struct {
	mu        sync.Mutex
	initErr   *apiError
	rates     []map[string]any
	rateErr   *apiError
	selectOK  bool
	selects   int
	shutdowns int
	lastQuery map[string]string
}

func (f *fakeBridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux.HandleFunc("POST /initialize", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.initErr != nil {
			write(w, map[string]any{"error": f.initErr})
			return
		}
		write(w, map[string]any{"ok": true})
	})
	mux.HandleFunc("POST /shutdown", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.shutdowns++
		f.mu.Unlock()
		write(w, map[string]any{"ok": true})
	})
	mux.HandleFunc("POST /symbol_select", func(w http.ResponseWriter, r *http.Request) {
		var req symbolSelectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Enable)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.selects++
		write(w, map[string]any{"ok": f.selectOK})
	})
	mux.HandleFunc("GET /copy_rates_from_pos", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastQuery = map[string]string{}
		for k := range r.URL.Query() {
			f.lastQuery[k] = r.URL.Query().Get(k)
		}
		if f.rateErr != nil {
			write(w, map[string]any{"rates": nil, "error": f.rateErr})
			return
		}
		write(w, map[string]any{"rates": f.rates})
	})
	return mux
}

func (f *fakeBridge) selectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selects
}

func rateRow(ts int64, close float64) map[string]any {
	return map[string]any{
		"time": ts, "open": close - 1, "high": close + 1, "low": close - 2, "close": close,
		"tick_volume": 1.5e3, "spread": 12, "real_volume": "0",
	}
}

func newTestClient(t *testing.T, fb *fakeBridge) *Client {
	t.Helper()
	srv := httptest.NewServer(fb.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestFetchRecent(t *testing.T) {
	fb := &fakeBridge{selectOK: true, rates: []map[string]any{rateRow(1704067200, 10), rateRow(1704067260, 11)}}
	c := newTestClient(t, fb)
	h4, _ := timeframe.Parse("H4")

	require.NoError(t, c.Connect(context.Background()))
	cs, err := c.FetchRecent(context.Background(), "EURUSD", h4, 2)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cs[0].OpenTime)
	assert.Equal(t, 11.0, cs[1].Close)
	assert.Equal(t, int64(1500), cs[1].TickVolume)
	assert.Equal(t, int32(12), cs[1].Spread)
	assert.Equal(t, "16388", fb.lastQuery["timeframe"])
	assert.Equal(t, "0", fb.lastQuery["start_pos"])
	assert.Equal(t, "2", fb.lastQuery["count"])
}

func TestSymbolSelectedOncePerSession(t *testing.T) {
	fb := &fakeBridge{selectOK: true, rates: []map[string]any{rateRow(1704067200, 10), rateRow(1704067260, 11)}}
	c := newTestClient(t, fb)
	m1, _ := timeframe.Parse("M1")
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	for i := 0; i < 3; i++ {
		_, err := c.FetchRecent(ctx, "EURUSD", m1, 2)
		require.NoError(t, err)
	}
	_, err := c.FetchRecent(ctx, "XAUUSD", m1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, fb.selectCount())

	fb.mu.Lock()
	fb.rateErr = &apiError{Code: CodeNotFound, Message: "Terminal: Not found"}
	fb.mu.Unlock()
	_, err = c.FetchRecent(ctx, "EURUSD", m1, 2)
	require.Error(t, err)
	fb.mu.Lock()
	fb.rateErr = nil
	fb.mu.Unlock()
	_, err = c.FetchRecent(ctx, "EURUSD", m1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, fb.selectCount(), "a failed fetch selects the symbol again")

	require.NoError(t, c.Disconnect())
	require.NoError(t, c.Connect(ctx))
	_, err = c.FetchRecent(ctx, "EURUSD", m1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, fb.selectCount(), "a new session selects again")
}

func TestConnectRejectedCarriesNativeCode(t *testing.T) {
	fb := &fakeBridge{initErr: &apiError{Code: CodeInternalFailInit, Message: "IPC initialize failed, MetaTrader 5 x64 not found"}}
	c := newTestClient(t, fb)

	err := c.Connect(context.Background())
	var ce *model.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, -10003, ce.Code)
	assert.Contains(t, err.Error(), "-10003")
}

func TestConnectUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	err = c.Connect(context.Background())
	var ce *model.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeInternalFailConnect, ce.Code)
}

func TestFetchUnknownSymbolIsFetchError(t *testing.T) {
	fb := &fakeBridge{selectOK: false}
	c := newTestClient(t, fb)
	m1, _ := timeframe.Parse("M1")

	_, err := c.FetchRecent(context.Background(), "NOPE", m1, 2)
	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "NOPE", fe.Symbol)
	assert.Equal(t, CodeNotFound, fe.Code)
}

func TestFetchEmptyIsFetchError(t *testing.T) {
	fb := &fakeBridge{selectOK: true}
	c := newTestClient(t, fb)
	m1, _ := timeframe.Parse("M1")

	_, err := c.FetchRecent(context.Background(), "EURUSD", m1, 2)
	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "no data")
}

func TestFetchLinkFailureIsConnectionError(t *testing.T) {
	fb := &fakeBridge{selectOK: true, rateErr: &apiError{Code: CodeInternalFailReceive, Message: "IPC recv failed"}}
	c := newTestClient(t, fb)
	m1, _ := timeframe.Parse("M1")

	_, err := c.FetchRecent(context.Background(), "EURUSD", m1, 2)
	assert.True(t, model.IsConnection(err))

	fb.mu.Lock()
	fb.rateErr = &apiError{Code: CodeInvalidParams, Message: "Invalid params"}
	fb.mu.Unlock()
	_, err = c.FetchRecent(context.Background(), "EURUSD", m1, 2)
	var fe *model.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeInvalidParams, fe.Code)
}

func TestFetchOutOfOrderRejected(t *testing.T) {
	fb := &fakeBridge{selectOK: true, rates: []map[string]any{rateRow(1704067260, 10), rateRow(1704067200, 11)}}
	c := newTestClient(t, fb)
	m1, _ := timeframe.Parse("M1")

	_, err := c.FetchRecent(context.Background(), "EURUSD", m1, 2)
	var fe *model.FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestDisconnectIdempotent(t *testing.T) {
	fb := &fakeBridge{}
	c := newTestClient(t, fb)

	assert.NoError(t, c.Disconnect(), "never connected")
	require.NoError(t, c.Connect(context.Background()))
	assert.NoError(t, c.Disconnect())
	assert.NoError(t, c.Disconnect())

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, 1, fb.shutdowns)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.True(t, model.IsConfig(err))
	_, err = New(Options{BaseURL: "http://127.0.0.1:8228", StartPos: -1})
	assert.True(t, model.IsConfig(err))

	c, err := New(Options{BaseURL: "http://127.0.0.1:8228", RPS: 0.5})
	require.NoError(t, err)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestFlexibleInt64(t *testing.T) {
	var v struct {
		A FlexibleInt64 `json:"a"`
		B FlexibleInt64 `json:"b"`
		C FlexibleInt64 `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42,"b":"1.2e3","c":7.0}`), &v))
	assert.Equal(t, int64(42), v.A.Int64())
	assert.Equal(t, int64(1200), v.B.Int64())
	assert.Equal(t, int64(7), v.C.Int64())
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))

	require.NoError(t, json.Unmarshal([]byte(`{"a":9007199254740993,"b":"9007199254740995","c":null}`), &v))
	assert.Equal(t, int64(9007199254740993), v.A.Int64())
	assert.Equal(t, int64(9007199254740995), v.B.Int64())
	assert.Zero(t, v.C.Int64())
}

func TestRateWithNullVolumeDecodes(t *testing.T) {
	var r rawRate
	require.NoError(t, json.Unmarshal([]byte(`{"time":1704067200,"open":1.1,"tick_volume":12,"real_volume":null}`), &r))
	c := r.ToCandle()
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.OpenTime)
	assert.Equal(t, int64(12), c.TickVolume)
	assert.Zero(t, c.RealVolume)
}
