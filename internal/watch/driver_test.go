package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/saver"
	"ohlcv-watch/internal/slogx"
	"ohlcv-watch/internal/source/sourcetest"
)

func newDriverFixture(t *testing.T, interval time.Duration, notify func(Event), symbols ...string) (*sourcetest.Fake, *Driver, []*Target) {
	t.Helper()
	fake := sourcetest.New()
	dir := t.TempDir()
	var targets []*Target
	for _, s := range symbols {
		targets = append(targets, NewTarget(s, mustTF(t, "M1"), filepath.Join(dir, s+"_M1.csv")))
	}
	stats := NewStats(targets)
	w := NewWatcher(fake, saver.CSVSaver{Location: time.UTC}, 10, PolicyAppend, Fanout(stats.Record, notify))
	return fake, NewDriver(fake, w, targets, interval, stats), targets
}

func TestDriverStopsOnCancelAndDisconnects(t *testing.T) {
	events := make(chan Event, 4)
	fake, d, _ := newDriverFixture(t, time.Millisecond, func(ev Event) { events <- ev }, "EURUSD")
	fake.Push("EURUSD", "M1", bars(0, 3)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return fake.CallCount(10) == 1 }, 2*time.Second, time.Millisecond)
	fake.Push("EURUSD", "M1", bar(3))

	select {
	case ev := <-events:
		assert.Equal(t, bar(3).OpenTime, ev.OpenTime)
	case <-time.After(2 * time.Second):
		t.Fatal("no close event")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop")
	}
	assert.Equal(t, 1, fake.Disconnects)
	_, evs, _ := d.Stats().Totals()
	assert.Equal(t, 1, evs)
}

func TestDriverCancelledBeforeStart(t *testing.T) {
	fake, d, _ := newDriverFixture(t, time.Hour, nil, "EURUSD")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, d.Run(ctx))
	assert.Empty(t, fake.Calls)
	assert.Equal(t, 1, fake.Disconnects)
}

func TestDriverConnectionLossIsFatal(t *testing.T) {
	fake, d, _ := newDriverFixture(t, time.Millisecond, nil, "EURUSD", "GBPUSD")
	fake.Push("EURUSD", "M1", bars(0, 3)...)
	fake.Push("GBPUSD", "M1", bars(0, 3)...)
	fake.FailNext("EURUSD", "M1", &model.ConnectionError{Code: -10004, Message: "No IPC connection"})

	err := d.Run(context.Background())

	var ce *model.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, -10004, ce.Code)
	assert.Equal(t, 1, fake.Disconnects)
	for _, c := range fake.Calls {
		assert.NotEqual(t, "GBPUSD", c.Symbol, "no target polled after a fatal error")
	}
	snap := d.Stats().Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1, snap[0].Failures)
	assert.Equal(t, "EURUSD", snap[0].Symbol)
}

func TestDriverContinuesPastTargetFailures(t *testing.T) {
	fake, d, targets := newDriverFixture(t, time.Hour, nil, "EURUSD", "GBPUSD")
	fake.Push("GBPUSD", "M1", bars(0, 3)...)
	fake.FailNext("EURUSD", "M1", &model.FetchError{Symbol: "EURUSD", Timeframe: "M1", Code: -4, Message: "Terminal: Not found"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		polls, _, _ := d.Stats().Totals()
		return polls >= 1
	}, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, ok := targets[0].Watermark()
	assert.False(t, ok)
	_, ok = targets[1].Watermark()
	assert.True(t, ok)
	assert.FileExists(t, targets[1].Path)

	snap := d.Stats().Snapshot()
	assert.Equal(t, "EURUSD", snap[0].Symbol)
	assert.Equal(t, 1, snap[0].Failures)
	assert.Contains(t, snap[0].LastError, "-4")
	assert.Equal(t, 0, snap[1].Failures)
}

func TestRunOnceExportsEveryTarget(t *testing.T) {
	fake, d, targets := newDriverFixture(t, time.Hour, nil, "EURUSD", "GBPUSD", "USDJPY")
	fake.Push("EURUSD", "M1", bars(0, 20)...)
	fake.Push("GBPUSD", "M1", bars(0, 4)...)

	err := d.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")

	assert.Len(t, readLines(t, targets[0].Path), 11)
	assert.Len(t, readLines(t, targets[1].Path), 5)
	assert.NoFileExists(t, targets[2].Path)
	assert.Equal(t, 1, fake.Disconnects)
	_, ok := targets[0].Watermark()
	assert.False(t, ok)
}

func TestEventLogLine(t *testing.T) {
	var buf bytes.Buffer
	bkk, err := saver.ResolveZone("Asia/Bangkok")
	require.NoError(t, err)
	log := NewEventLog(&buf, bkk)

	stats := NewStats([]*Target{NewTarget("EURUSD", mustTF(t, "H1"), "EURUSD_H1.csv")})
	notify := Fanout(stats.Record, log.Notify)
	notify(Event{Symbol: "EURUSD", Timeframe: "H1", Kind: EventAppend, OpenTime: t0, At: t0, Path: "EURUSD_H1.csv"})
	log.Close()
	log.Close()

	out := buf.String()
	assert.Contains(t, out, "msg=bar.closed")
	assert.Contains(t, out, "symbol=EURUSD")
	assert.Contains(t, out, "timeframe=H1")
	assert.Contains(t, out, "kind=append")
	assert.Contains(t, out, "open_time=2024-01-01T07:00:00+07:00")

	snap := stats.Snapshot()
	assert.Equal(t, 1, snap[0].Events)
	require.NotNil(t, snap[0].LastOpenTime)
	assert.Equal(t, t0, *snap[0].LastOpenTime)
}

func TestRunHeartbeat(t *testing.T) {
	lines := make(chan string, 8)
	stats := NewStats(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunHeartbeat(ctx, time.Millisecond, stats, slogx.NewChanLogger(lines))

	select {
	case line := <-lines:
		assert.Contains(t, line, "msg=heartbeat")
		assert.Contains(t, line, "polls=0")
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat")
	}
}

func TestWriteRunReport(t *testing.T) {
	targets := []*Target{
		NewTarget("EURUSD", mustTF(t, "M1"), "a.csv"),
		NewTarget("GBPUSD", mustTF(t, "M1"), "b.csv"),
	}
	stats := NewStats(targets)
	stats.tick()
	stats.Record(Event{Symbol: "EURUSD", Timeframe: "M1", OpenTime: t0})
	stats.fail(targets[1], errors.New("fetch GBPUSD M1: -4 - Terminal: Not found"))

	dir := filepath.Join(t.TempDir(), "data")
	p, err := WriteRunReport(dir, NewRunReport(stats, t0, t0.Add(time.Hour), nil))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ReportName), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	var r RunReport
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, "ok", r.Exit)
	assert.Equal(t, 1, r.Polls)
	assert.Equal(t, 1, r.Events)
	assert.Equal(t, 1, r.Failures)
	require.Len(t, r.Targets, 2)
	require.NotNil(t, r.Targets[0].LastOpenTime)
	assert.True(t, t0.Equal(*r.Targets[0].LastOpenTime))
	assert.Equal(t, "GBPUSD", r.Targets[1].Symbol)
	assert.Contains(t, r.Targets[1].LastError, "Not found")
	assert.Nil(t, r.Targets[1].LastOpenTime)
	assert.Equal(t, 1, bytes.Count(data, []byte(`"last_open_time"`)), "targets without events omit last_open_time")
}

func TestJoinFailedReasonsTruncates(t *testing.T) {
	var ts []TargetStats
	for _, s := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		ts = append(ts, TargetStats{Symbol: s, Timeframe: "M1", LastError: "boom"})
	}
	got := joinFailedReasons(ts)
	assert.Contains(t, got, "A M1: boom; B M1: boom")
	assert.Contains(t, got, "(+3 more)")
	assert.NotContains(t, got, "F M1")
	assert.Empty(t, joinFailedReasons(ts[:0]))
}
