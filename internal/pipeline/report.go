package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/legacyckpt/internal/archive"
	"git.home.luguber.info/inful/legacyckpt/internal/generator"
	"git.home.luguber.info/inful/legacyckpt/internal/publish"
)

// Outcome summarizes a whole run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// Report is the machine-readable description of one run.
type Report struct {
	RunID      string                `json:"run_id"`
	ConfigHash string                `json:"config_hash"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	DryRun     bool                  `json:"dry_run"`
	Outcome    Outcome               `json:"outcome"`
	Error      string                `json:"error,omitempty"`
	Versions   []string              `json:"versions"`
	Stages     []StageTiming         `json:"stages"`
	Results    []generator.Result    `json:"results"`
	Sync       *publish.SyncResult   `json:"sync,omitempty"`
	Archive    *archive.Result       `json:"archive,omitempty"`
	Upload     *publish.UploadResult `json:"upload,omitempty"`
}

// Stage returns the timing entry for s, if the run planned it.
func (r *Report) Stage(s Stage) (StageTiming, bool) {
	for _, st := range r.Stages {
		if st.Stage == s {
			return st, true
		}
	}
	return StageTiming{}, false
}

// WriteReport stores r as indented JSON at path, replacing any previous file atomically.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
