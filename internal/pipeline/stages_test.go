package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_Stages(t *testing.T) {
	tl := NewTimeline("run-1")

	h := tl.begin("load_rules")
	tl.end(h, map[string]float64{"entries": 2, " ": 1}, nil)
	h = tl.begin("index")
	tl.end(h, nil, errors.New("boom"))

	require.Len(t, tl.Stages, 2)
	assert.Equal(t, map[string]float64{"entries": 2}, tl.Stages[0].Counters)
	assert.Equal(t, "error", tl.Stages[1].Status)
	assert.Equal(t, "boom", tl.Stages[1].Error)

	_, ok := tl.Stage("check")
	assert.False(t, ok)
}

func TestTimeline_FinalizeOrdersSignals(t *testing.T) {
	tl := NewTimeline("")
	tl.signal("shadowed_types", "index", "info", "shadowed", 1)
	tl.signal("skipped_files", "check", "Warning", "skipped", 2)
	tl.signal("ancestor_gaps", "check", "warning", "gaps", 3)
	tl.Finalize()

	var codes []string
	for _, s := range tl.Signals {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"ancestor_gaps", "skipped_files", "shadowed_types"}, codes)
	assert.Equal(t, 2, tl.Summary.SignalsBySeverity["warning"])
	assert.Equal(t, 1, tl.Summary.SignalsBySeverity["info"])
	assert.Equal(t, 0, tl.Summary.SignalsBySeverity["critical"])
}

func TestTimeline_Save(t *testing.T) {
	tl := NewTimeline("run-2")
	h := tl.begin("check")
	tl.end(h, nil, nil)

	path := filepath.Join(t.TempDir(), "out", "timeline.json")
	require.NoError(t, tl.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Timeline
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, 1, got.Summary.StageCount)
	assert.Equal(t, 0, got.Summary.FailedStages)
}

func TestTimeline_NilIsNoop(t *testing.T) {
	var tl *Timeline
	tl.end(stageHandle{name: "x"}, nil, nil)
	tl.signal("a", "b", "info", "c", 0)
	tl.Finalize()
	assert.NoError(t, tl.Save(filepath.Join(t.TempDir(), "never.json")))
}
