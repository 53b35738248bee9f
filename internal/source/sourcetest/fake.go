// Package sourcetest provides an in-memory DataSource for tests.
package sourcetest

import (
	"context"
	"errors"
	"sync"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/timeframe"
)

// Call records one FetchRecent invocation.
type Call struct {
	Symbol    string
	Timeframe string
	Count     int
}

// Fake serves closed candles from memory. Push appends newly closed bars.
type Fake struct {
	mu          sync.Mutex
	history     map[string][]model.Candle
	failNext    map[string][]error
	ConnectErrs []error // consumed one per Connect call
	Connects    int
	Disconnects int
	Calls       []Call
}

func New() *Fake {
	return &Fake{
		history:  make(map[string][]model.Candle),
		failNext: make(map[string][]error),
	}
}

func key(symbol, tf string) string { return symbol + "@" + tf }

// Push appends candles to the symbol/timeframe history.
func (f *Fake) Push(symbol, tf string, cs ...model.Candle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(symbol, tf)
	f.history[k] = append(f.history[k], cs...)
}

// FailNext queues err for the next fetch of symbol/timeframe.
func (f *Fake) FailNext(symbol, tf string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(symbol, tf)
	f.failNext[k] = append(f.failNext[k], err)
}

// CallCount returns how many fetches asked for count candles.
func (f *Fake) CallCount(count int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Count == count {
			n++
		}
	}
	return n
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connects++
	if len(f.ConnectErrs) > 0 {
		err := f.ConnectErrs[0]
		f.ConnectErrs = f.ConnectErrs[1:]
		return err
	}
	return nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disconnects++
	return nil
}

func (f *Fake) FetchRecent(ctx context.Context, symbol string, tf timeframe.Timeframe, count int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(symbol, tf.Code)
	f.Calls = append(f.Calls, Call{Symbol: symbol, Timeframe: tf.Code, Count: count})
	if q := f.failNext[k]; len(q) > 0 {
		err := q[0]
		f.failNext[k] = q[1:]
		return nil, err
	}
	h := f.history[k]
	if len(h) == 0 {
		return nil, &model.FetchError{Symbol: symbol, Timeframe: tf.Code, Err: errors.New("no data")}
	}
	if count < len(h) {
		h = h[len(h)-count:]
	}
	out := make([]model.Candle, len(h))
	copy(out, h)
	return out, nil
}
