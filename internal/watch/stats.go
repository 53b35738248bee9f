package watch

import (
	"sort"
	"sync"
	"time"
)

// TargetStats summarizes one target over a run.
type TargetStats struct {
	Symbol       string     `json:"symbol"`
	Timeframe    string     `json:"timeframe"`
	Path         string     `json:"path"`
	Events       int        `json:"events"`
	Failures     int        `json:"failures"`
	LastOpenTime *time.Time `json:"last_open_time,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Stats is shared by the driver, the heartbeat and the run report.
type Stats struct {
	mu      sync.Mutex
	targets map[string]*TargetStats
	polls   int
}

func NewStats(targets []*Target) *Stats {
	s := &Stats{targets: make(map[string]*TargetStats, len(targets))}
	for _, t := range targets {
		s.targets[t.String()] = &TargetStats{Symbol: t.Symbol, Timeframe: t.Timeframe.Code, Path: t.Path}
	}
	return s
}

func (s *Stats) get(t *Target) *TargetStats {
	ts, ok := s.targets[t.String()]
	if !ok {
		ts = &TargetStats{Symbol: t.Symbol, Timeframe: t.Timeframe.Code, Path: t.Path}
		s.targets[t.String()] = ts
	}
	return ts
}

func (s *Stats) tick() {
	s.mu.Lock()
	s.polls++
	s.mu.Unlock()
}

// Record updates stats from an emitted event.
func (s *Stats) Record(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.targets[ev.Symbol+" "+ev.Timeframe]
	if !ok {
		return
	}
	ts.Events++
	ot := ev.OpenTime
	ts.LastOpenTime = &ot
}

func (s *Stats) fail(t *Target, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.get(t)
	ts.Failures++
	ts.LastError = err.Error()
}

// Snapshot returns a copy sorted by symbol then timeframe.
func (s *Stats) Snapshot() []TargetStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TargetStats, 0, len(s.targets))
	for _, ts := range s.targets {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timeframe < out[j].Timeframe
	})
	return out
}

// Totals returns ticks completed, events and failures across all targets.
func (s *Stats) Totals() (polls, events, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ts := range s.targets {
		events += ts.Events
		failures += ts.Failures
	}
	return s.polls, events, failures
}
