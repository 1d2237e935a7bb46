// Package history persists one row per generation attempt so later runs can
// skip versions that already have checkpoints.
package history

import (
	"context"
	"time"
)

// Status mirrors generator statuses that are worth persisting.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Entry is one recorded generation attempt.
type Entry struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"run_id"`
	Version   string        `json:"version"`
	Status    Status        `json:"status"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration_ns"`
	FileCount int           `json:"file_count"`
	Timestamp time.Time     `json:"timestamp"`
}

// Store defines the interface for persisting and querying attempts.
type Store interface {
	// Record appends an entry. A zero Timestamp is stamped with the current time.
	Record(ctx context.Context, e Entry) error

	// Succeeded reports the versions whose latest entry succeeded.
	Succeeded(ctx context.Context) (map[string]bool, error)

	// Latest returns the most recent entry per version, ordered by version.
	Latest(ctx context.Context) ([]Entry, error)

	// ByRun returns every entry of one run in insertion order.
	ByRun(ctx context.Context, runID string) ([]Entry, error)

	// Close releases resources.
	Close() error
}
