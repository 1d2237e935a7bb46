package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/retry"
)

// fakeRunner records invocations and writes a checkpoint file per call unless told to fail.
type fakeRunner struct {
	dir     string
	calls   [][]string
	envs    [][]string
	failFor map[string]int // version -> remaining failures
}

func (f *fakeRunner) Run(_ context.Context, c Command) (Outcome, error) {
	f.calls = append(f.calls, c.Argv)
	f.envs = append(f.envs, c.Env)
	version := c.Argv[len(c.Argv)-1]
	if n := f.failFor[version]; n > 0 {
		f.failFor[version] = n - 1
		return Outcome{ExitCode: 3, Tail: []string{"Traceback", "boom"}}, errors.New("exit status 3")
	}
	if f.dir != "" {
		if err := os.MkdirAll(filepath.Join(f.dir, version), 0o750); err != nil {
			return Outcome{ExitCode: -1}, err
		}
		if err := os.WriteFile(filepath.Join(f.dir, version, "epoch=0-step=10.ckpt"), []byte(version), 0o600); err != nil {
			return Outcome{ExitCode: -1}, err
		}
	}
	return Outcome{}, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(t *testing.T, command ...string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Generator:      config.GeneratorConfig{Command: command},
		CheckpointsDir: filepath.Join(t.TempDir(), "checkpoints"),
		Storage:        config.StorageConfig{Bucket: "b"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestArgv(t *testing.T) {
	cfg := testConfig(t, "bash", "generate_checkpoints.sh")
	g := New(cfg, &fakeRunner{})
	assert.Equal(t, []string{"bash", "generate_checkpoints.sh", "1.9.0"}, g.Argv("1.9.0"))

	cfg = testConfig(t, "python", "gen.py", "--version={version}", "--out", "ckpt/{version}")
	g = New(cfg, &fakeRunner{})
	assert.Equal(t, []string{"python", "gen.py", "--version=2.0.0", "--out", "ckpt/2.0.0"}, g.Argv("2.0.0"))
}

func TestGenerateRunsSeriallyInOrder(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	cfg.Generator.Env = map[string]string{"PL_TEST": "1"}
	runner := &fakeRunner{dir: cfg.CheckpointsDir}
	g := New(cfg, runner).WithLogger(quietLogger())

	var seen []string
	results, err := g.Generate(context.Background(), []string{"1.0.0", "1.1.0", "1.2.0"}, Options{
		OnResult: func(r Result) { seen = append(seen, r.Version) },
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"1.0.0", "1.1.0", "1.2.0"}, seen)

	for i, v := range []string{"1.0.0", "1.1.0", "1.2.0"} {
		assert.Equal(t, []string{"bash", "gen.sh", v}, runner.calls[i])
		assert.Equal(t, StatusSucceeded, results[i].Status)
		assert.Equal(t, 1, results[i].Attempts)
		assert.Equal(t, []string{v + "/epoch=0-step=10.ckpt"}, results[i].Files)
		assert.Contains(t, runner.envs[i], "LEGACYCKPT_VERSION="+v)
		assert.Contains(t, runner.envs[i], "PL_TEST=1")
	}
}

func TestGenerateStopsAtFirstFailure(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	runner := &fakeRunner{dir: cfg.CheckpointsDir, failFor: map[string]int{"1.1.0": 1}}
	g := New(cfg, runner).WithLogger(quietLogger())

	results, err := g.Generate(context.Background(), []string{"1.0.0", "1.1.0", "1.2.0"}, Options{})
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryGenerator))
	assert.Contains(t, err.Error(), "boom")

	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, 3, results[1].ExitCode)
	assert.Len(t, runner.calls, 2, "1.2.0 must not run after a failure")
}

func TestGenerateRetries(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	runner := &fakeRunner{dir: cfg.CheckpointsDir, failFor: map[string]int{"1.0.0": 2}}
	g := New(cfg, runner).
		WithLogger(quietLogger()).
		WithRetry(retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2))

	results, err := g.Generate(context.Background(), []string{"1.0.0"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, StatusSucceeded, results[0].Status)
}

func TestWithRetryIgnoresInvalidPolicy(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	runner := &fakeRunner{dir: cfg.CheckpointsDir, failFor: map[string]int{"1.0.0": 1}}
	g := New(cfg, runner).
		WithLogger(quietLogger()).
		WithRetry(retry.Policy{Mode: config.RetryBackoffFixed, MaxRetries: 3})

	results, err := g.Generate(context.Background(), []string{"1.0.0"}, Options{})
	require.Error(t, err)
	assert.Equal(t, 1, results[0].Attempts, "configured policy without retries stays in effect")
}

func TestGenerateSkipAndDryRun(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	runner := &fakeRunner{dir: cfg.CheckpointsDir}
	g := New(cfg, runner).WithLogger(quietLogger())

	results, err := g.Generate(context.Background(), []string{"1.0.0", "1.1.0"}, Options{
		Skip: func(v string) bool { return v == "1.0.0" },
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Equal(t, StatusSucceeded, results[1].Status)
	assert.Len(t, runner.calls, 1)

	results, err = g.Generate(context.Background(), []string{"2.0.0"}, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, results[0].Status)
	assert.Len(t, runner.calls, 1)
}

func TestGenerateCanceled(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(cfg, &fakeRunner{}).WithLogger(quietLogger()).Generate(ctx, []string{"1.0.0"}, Options{})
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryRuntime))
}

func TestPrepare(t *testing.T) {
	cfg := testConfig(t, "bash", "gen.sh")
	cfg.Prepare.Commands = [][]string{{"pip", "install", "1.0.0"}}
	runner := &fakeRunner{}
	g := New(cfg, runner).WithLogger(quietLogger())
	require.NoError(t, g.Prepare(context.Background(), false))
	assert.Equal(t, [][]string{{"pip", "install", "1.0.0"}}, runner.calls)

	require.NoError(t, g.Prepare(context.Background(), true))
	assert.Len(t, runner.calls, 1)

	runner.failFor = map[string]int{"1.0.0": 1}
	err := g.Prepare(context.Background(), false)
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryPrepare))
}
