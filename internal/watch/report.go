package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportName is the run report file written under the output directory.
const ReportName = ".lastrun.json"

// RunReport is the shutdown summary of one run.
type RunReport struct {
	StartedAt time.Time     `json:"started_at"`
	StoppedAt time.Time     `json:"stopped_at"`
	Polls     int           `json:"polls"`
	Events    int           `json:"events"`
	Failures  int           `json:"failures"`
	Exit      string        `json:"exit"`
	Targets   []TargetStats `json:"targets"`
}

// NewRunReport snapshots stats. exitErr nil means a clean stop.
func NewRunReport(stats *Stats, started, stopped time.Time, exitErr error) RunReport {
	polls, events, failures := stats.Totals()
	exit := "ok"
	if exitErr != nil {
		exit = exitErr.Error()
	}
	return RunReport{
		StartedAt: started.UTC(),
		StoppedAt: stopped.UTC(),
		Polls:     polls,
		Events:    events,
		Failures:  failures,
		Exit:      exit,
		Targets:   stats.Snapshot(),
	}
}

// WriteRunReport writes r to dir/.lastrun.json and returns the path.
func WriteRunReport(dir string, r RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	p := filepath.Join(dir, ReportName)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", err
	}
	slog.Info("report saved", "path", p, "events", r.Events, "failures", r.Failures)
	if s := joinFailedReasons(r.Targets); s != "" {
		slog.Info("summary failed", "reasons", s)
	}
	return p, nil
}

func joinFailedReasons(targets []TargetStats) string {
	var failed []TargetStats
	for _, t := range targets {
		if t.LastError != "" {
			failed = append(failed, t)
		}
	}
	var b strings.Builder
	for i, f := range failed {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.Symbol + " " + f.Timeframe)
		b.WriteString(": ")
		b.WriteString(f.LastError)
		if i >= 4 && len(failed) > 6 {
			b.WriteString(fmt.Sprintf(" (+%d more)", len(failed)-5))
			break
		}
	}
	return b.String()
}
