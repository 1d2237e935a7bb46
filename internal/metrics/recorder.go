package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for a run. Implementations must be safe for
// use from a single goroutine; the pipeline never records concurrently.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveVersionDuration(version string, d time.Duration, result ResultLabel)
	IncGeneratorRetry(version string)
	AddObjects(operation string, n int) // operation: uploaded|skipped
	AddBytesUploaded(n int64)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome ResultLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)                {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                        {}
func (NoopRecorder) ObserveVersionDuration(string, time.Duration, ResultLabel) {}
func (NoopRecorder) IncGeneratorRetry(string)                                  {}
func (NoopRecorder) AddObjects(string, int)                                    {}
func (NoopRecorder) AddBytesUploaded(int64)                                    {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                          {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                                 {}
