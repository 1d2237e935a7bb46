// Package pipeline runs the legacy checkpoint stages in their fixed order and
// produces the run report.
package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Stage names one step of a run.
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageGenerate Stage = "generate"
	StageSync     Stage = "sync"
	StageArchive  Stage = "archive"
	StageUpload   Stage = "upload"
)

// Stage sets used by the CLI commands. Order is always the order of AllStages.
var (
	AllStages      = []Stage{StagePrepare, StageGenerate, StageSync, StageArchive, StageUpload}
	GenerateStages = []Stage{StagePrepare, StageGenerate}
	PublishStages  = []Stage{StageSync, StageArchive, StageUpload}
)

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageNotRun    StageStatus = "not_run"
)

// StageTiming records how one stage went.
type StageTiming struct {
	Stage      Stage       `json:"stage"`
	Status     StageStatus `json:"status"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	DurationMS float64     `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// ParseStages accepts a comma separated list and returns it in execution order.
func ParseStages(raw string) ([]Stage, error) {
	want := map[Stage]bool{}
	for _, part := range strings.Split(raw, ",") {
		s := Stage(strings.ToLower(strings.TrimSpace(part)))
		if s == "" {
			continue
		}
		if !known(s) {
			return nil, fmt.Errorf("unknown stage %q", s)
		}
		want[s] = true
	}
	return ordered(want), nil
}

func known(s Stage) bool {
	for _, k := range AllStages {
		if k == s {
			return true
		}
	}
	return false
}

func ordered(want map[Stage]bool) []Stage {
	out := make([]Stage, 0, len(want))
	for _, s := range AllStages {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}
