package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/source"
	"ohlcv-watch/internal/timeframe"
)

const (
	defaultTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Options configures the bridge client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RPS caps requests per second to the bridge. 0 disables throttling.
	RPS float64
	// StartPos is the bar index copy_rates_from_pos starts from (0 = newest).
	StartPos int
}

// Client talks to a terminal through its HTTP bridge.
// It implements source.DataSource.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	startPos int

	mu        sync.Mutex
	connected bool
	// selected holds symbols already enabled during the current session.
	selected map[string]bool
}

var _ source.DataSource = (*Client)(nil)

// New validates opts and builds a Client. No network I/O happens here.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &model.ConfigError{Field: "bridge-url", Value: opts.BaseURL, Reason: "must be an absolute http(s) URL"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.StartPos < 0 {
		return nil, &model.ConfigError{Field: "start-pos", Value: strconv.Itoa(opts.StartPos), Reason: "must be >= 0"}
	}
	c := &Client{
		http: resty.NewWithClient(newHTTPClient(opts.Timeout)).
			SetBaseURL(strings.TrimRight(u.String(), "/")).
			SetHeader("Accept", "application/json"),
		startPos: opts.StartPos,
		selected: make(map[string]bool),
	}
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c, nil
}

func (c *Client) Name() string { return "mt5-bridge" }

// Connect initializes the terminal session.
func (c *Client) Connect(ctx context.Context) error {
	resp, err := c.call(ctx, http.MethodPost, "/initialize", nil, struct{}{})
	if err != nil {
		var ae *apiError
		if errors.As(err, &ae) {
			return &model.ConnectionError{Code: ae.Code, Message: ae.Message}
		}
		return asConnectionError(err)
	}
	if resp.OK != nil && !*resp.OK {
		return &model.ConnectionError{Code: CodeFail, Message: "terminal rejected initialize"}
	}
	c.mu.Lock()
	c.connected = true
	c.selected = make(map[string]bool)
	c.mu.Unlock()
	return nil
}

// Disconnect shuts the terminal session down. Errors are logged and swallowed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.selected = make(map[string]bool)
	c.mu.Unlock()
	if !wasConnected {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if _, err := c.call(ctx, http.MethodPost, "/shutdown", nil, struct{}{}); err != nil {
		slog.Debug("bridge shutdown failed", "error", err)
	}
	return nil
}

// FetchRecent returns up to count most-recent candles, oldest first.
func (c *Client) FetchRecent(ctx context.Context, symbol string, tf timeframe.Timeframe, count int) ([]model.Candle, error) {
	if count <= 0 {
		return nil, &model.FetchError{Symbol: symbol, Timeframe: tf.Code, Err: fmt.Errorf("count must be positive, got %d", count)}
	}
	if err := c.selectSymbol(ctx, symbol, tf); err != nil {
		return nil, err
	}
	q := map[string]string{
		"symbol":    symbol,
		"timeframe": strconv.Itoa(tf.Native),
		"start_pos": strconv.Itoa(c.startPos),
		"count":     strconv.Itoa(count),
	}
	resp, err := c.call(ctx, http.MethodGet, "/copy_rates_from_pos", q, nil)
	if err != nil {
		c.forget(symbol)
		return nil, fetchFailure(symbol, tf, err)
	}
	if len(resp.Rates) == 0 {
		return nil, &model.FetchError{Symbol: symbol, Timeframe: tf.Code, Err: errors.New("no data")}
	}
	candles := make([]model.Candle, len(resp.Rates))
	for i, r := range resp.Rates {
		candles[i] = r.ToCandle()
	}
	candles, err = source.Normalize(symbol, tf, candles)
	if err != nil {
		return nil, err
	}
	return source.TrimLatest(candles, count), nil
}

// selectSymbol enables symbol in Market Watch once per session.
func (c *Client) selectSymbol(ctx context.Context, symbol string, tf timeframe.Timeframe) error {
	c.mu.Lock()
	done := c.selected[symbol]
	c.mu.Unlock()
	if done {
		return nil
	}
	resp, err := c.call(ctx, http.MethodPost, "/symbol_select", nil, symbolSelectRequest{Symbol: symbol, Enable: true})
	if err != nil {
		return fetchFailure(symbol, tf, err)
	}
	if resp.OK != nil && !*resp.OK {
		return &model.FetchError{Symbol: symbol, Timeframe: tf.Code, Code: CodeNotFound, Message: "symbol cannot be selected"}
	}
	c.mu.Lock()
	c.selected[symbol] = true
	c.mu.Unlock()
	return nil
}

// forget makes the next fetch of symbol select it again.
func (c *Client) forget(symbol string) {
	c.mu.Lock()
	delete(c.selected, symbol)
	c.mu.Unlock()
}

// call runs one request and decodes the shared envelope. It returns
// *apiError for bridge-reported failures and a transport error otherwise.
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body any) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{Err: err}
	}
	var out response
	if raw := res.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && res.IsSuccess() {
			return nil, &apiError{Code: CodeFail, Message: fmt.Sprintf("%s: decode response: %v", path, err)}
		}
	}
	if out.Error != nil {
		return nil, out.Error
	}
	if res.IsError() {
		return nil, &apiError{Code: CodeFail, Message: fmt.Sprintf("%s: http %d: %s", path, res.StatusCode(), strings.TrimSpace(res.String()))}
	}
	return &out, nil
}

// transportError means the bridge itself could not be reached.
type transportError struct{ Err error }

func (e *transportError) Error() string { return "bridge unreachable: " + e.Err.Error() }
func (e *transportError) Unwrap() error { return e.Err }

func asConnectionError(err error) error {
	var te *transportError
	if errors.As(err, &te) {
		return &model.ConnectionError{Code: CodeInternalFailConnect, Message: te.Error(), Err: te.Err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &model.ConnectionError{Code: CodeFail, Err: err}
}

// fetchFailure maps a call error to ConnectionError (link down) or FetchError.
func fetchFailure(symbol string, tf timeframe.Timeframe, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		if isLinkCode(ae.Code) {
			return &model.ConnectionError{Code: ae.Code, Message: ae.Message}
		}
		return &model.FetchError{Symbol: symbol, Timeframe: tf.Code, Code: ae.Code, Message: ae.Message}
	}
	var te *transportError
	if errors.As(err, &te) {
		return asConnectionError(err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &model.FetchError{Symbol: symbol, Timeframe: tf.Code, Err: err}
}
