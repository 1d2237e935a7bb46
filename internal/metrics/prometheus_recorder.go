package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "legacyckpt"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	versionDuration *prom.HistogramVec
	versionResults  *prom.CounterVec
	retries         *prom.CounterVec
	objects         *prom.CounterVec
	bytesUploaded   prom.Counter
	runDuration     prom.Gauge
	runOutcome      *prom.CounterVec
	lastRun         prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	// Generation runs for minutes per version.
	slowBuckets := []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200}

	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   slowBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		versionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "version_generation_duration_seconds",
			Help:      "Duration of checkpoint generation per version",
			Buckets:   slowBuckets,
		}, []string{"version", "result"}),
		versionResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "version_results_total",
			Help:      "Generated versions by result",
		}, []string{"result"}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "generator_retries_total",
			Help:      "Generator retries per version",
		}, []string{"version"}),
		objects: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "objects_total",
			Help:      "Objects handled by the sync/upload stages",
		}, []string{"operation"}),
		bytesUploaded: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written to object storage",
		}),
		runDuration: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Runs by final outcome",
		}, []string{"outcome"}),
		lastRun: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.versionDuration, pr.versionResults,
		pr.retries, pr.objects, pr.bytesUploaded, pr.runDuration, pr.runOutcome, pr.lastRun)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveVersionDuration(version string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.versionDuration.WithLabelValues(version, string(result)).Observe(d.Seconds())
	p.versionResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncGeneratorRetry(version string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(version).Inc()
}

func (p *PrometheusRecorder) AddObjects(operation string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.objects.WithLabelValues(operation).Add(float64(n))
}

func (p *PrometheusRecorder) AddBytesUploaded(n int64) {
	if p == nil || n <= 0 {
		return
	}
	p.bytesUploaded.Add(float64(n))
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Set(d.Seconds())
	p.lastRun.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome ResultLabel) {
	if p == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

// WriteTextfile writes everything gathered from reg to path in the Prometheus text format,
// atomically, for the node_exporter textfile collector or a CI artifact.
func WriteTextfile(path string, reg *prom.Registry) error {
	if err := prom.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
