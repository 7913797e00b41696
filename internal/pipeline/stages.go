package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Signal is a notable condition observed during a run.
type Signal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

// StageMetric is the timing and counters of one stage.
type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type TimelineSummary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// Timeline records the stages of a check run. The zero value is not
// usable; a nil *Timeline ignores all calls.
type Timeline struct {
	Version     string          `json:"version"`
	RunID       string          `json:"run_id,omitempty"`
	GeneratedAt string          `json:"generated_at"`
	Stages      []StageMetric   `json:"stages"`
	Signals     []Signal        `json:"signals"`
	Summary     TimelineSummary `json:"summary"`
}

type stageHandle struct {
	name    string
	started time.Time
}

func NewTimeline(runID string) *Timeline {
	return &Timeline{
		Version:     "v1",
		RunID:       runID,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Stages:      []StageMetric{},
		Signals:     []Signal{},
	}
}

func (t *Timeline) begin(name string) stageHandle {
	return stageHandle{name: name, started: time.Now().UTC()}
}

func (t *Timeline) end(h stageHandle, counters map[string]float64, err error) {
	if t == nil {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	t.Stages = append(t.Stages, m)
}

func (t *Timeline) signal(code, stage, severity, message string, value float64) {
	if t == nil {
		return
	}
	t.Signals = append(t.Signals, Signal{
		Code:     code,
		Stage:    stage,
		Severity: strings.ToLower(severity),
		Message:  message,
		Value:    value,
	})
}

// Stage returns the metric of the named stage.
func (t *Timeline) Stage(name string) (StageMetric, bool) {
	if t == nil {
		return StageMetric{}, false
	}
	for _, s := range t.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageMetric{}, false
}

// Finalize orders signals by severity and fills in the summary.
func (t *Timeline) Finalize() {
	if t == nil {
		return
	}
	t.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	sort.SliceStable(t.Signals, func(i, j int) bool {
		pi, pj := signalPriority(t.Signals[i].Severity), signalPriority(t.Signals[j].Severity)
		if pi == pj {
			if t.Signals[i].Stage == t.Signals[j].Stage {
				return t.Signals[i].Code < t.Signals[j].Code
			}
			return t.Signals[i].Stage < t.Signals[j].Stage
		}
		return pi > pj
	})

	bySeverity := map[string]int{"critical": 0, "warning": 0, "info": 0}
	for _, s := range t.Signals {
		bySeverity[s.Severity]++
	}
	failed := 0
	for _, st := range t.Stages {
		if st.Status != "ok" {
			failed++
		}
	}
	t.Summary = TimelineSummary{
		StageCount:        len(t.Stages),
		FailedStages:      failed,
		SignalsBySeverity: bySeverity,
	}
}

// Save finalizes the timeline and writes it as indented JSON.
func (t *Timeline) Save(path string) error {
	if t == nil {
		return nil
	}
	t.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
