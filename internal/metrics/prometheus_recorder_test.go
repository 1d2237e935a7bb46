package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("generate", 150*time.Millisecond)
	pr.IncStageResult("generate", ResultSuccess)
	pr.ObserveVersionDuration("1.9.0", 2*time.Second, ResultSuccess)
	pr.ObserveVersionDuration("2.0.0", time.Second, ResultFailed)
	pr.IncGeneratorRetry("2.0.0")
	pr.AddObjects("uploaded", 3)
	pr.AddObjects("skipped", 0)
	pr.AddBytesUploaded(2048)
	pr.ObserveRunDuration(5 * time.Second)
	pr.IncRunOutcome(ResultFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(pr.versionResults.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.versionResults.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.objects.WithLabelValues("uploaded")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(pr.bytesUploaded))
	assert.Equal(t, 5.0, testutil.ToFloat64(pr.runDuration))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncRunOutcome(ResultSuccess)

	path := filepath.Join(t.TempDir(), "legacyckpt.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `legacyckpt_run_outcomes_total{outcome="success"} 1`))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveStageDuration("x", time.Second)
	pr.IncRunOutcome(ResultSuccess)
	var r Recorder = NoopRecorder{}
	r.AddBytesUploaded(10)
}
