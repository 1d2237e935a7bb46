package generator

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "generate_checkpoints.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700))
	return path
}

func TestExecRunnerStreamsOutput(t *testing.T) {
	requireShell(t)
	var buf bytes.Buffer
	r := &ExecRunner{Logger: slog.New(slog.NewTextHandler(&buf, nil)), TailLines: 2}

	out, err := r.Run(context.Background(), Command{
		Argv:  []string{"/bin/sh", "-c", `echo one; echo two 1>&2; printf three`},
		Attrs: []slog.Attr{slog.String("version", "1.0.0")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Len(t, out.Tail, 2)

	logs := buf.String()
	assert.Contains(t, logs, "msg=one")
	assert.Contains(t, logs, "stream=stderr")
	assert.Contains(t, logs, "msg=three")
	assert.Contains(t, logs, "version=1.0.0")
}

func TestExecRunnerExitCode(t *testing.T) {
	requireShell(t)
	r := &ExecRunner{Logger: quietLogger()}
	out, err := r.Run(context.Background(), Command{Argv: []string{"/bin/sh", "-c", "echo failing >&2; exit 4"}})
	require.Error(t, err)
	assert.Equal(t, 4, out.ExitCode)
	assert.Equal(t, []string{"failing"}, out.Tail)
}

func TestExecRunnerEmptyCommand(t *testing.T) {
	_, err := (&ExecRunner{}).Run(context.Background(), Command{})
	require.Error(t, err)
}

func TestGenerateWithRealScript(t *testing.T) {
	requireShell(t)
	work := t.TempDir()
	script := writeScript(t, work, `mkdir -p "$LEGACYCKPT_CHECKPOINTS_DIR/$1" && echo "$1" > "$LEGACYCKPT_CHECKPOINTS_DIR/$1/model.ckpt"`)

	cfg := testConfig(t, "/bin/sh", script)
	cfg.Generator.Workdir = work
	g := New(cfg, &ExecRunner{Logger: quietLogger()}).WithLogger(quietLogger())

	results, err := g.Generate(context.Background(), []string{"1.8.0", "1.9.0"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.9.0/model.ckpt"}, results[1].Files)

	data, err := os.ReadFile(filepath.Join(cfg.CheckpointsDir, "1.8.0", "model.ckpt"))
	require.NoError(t, err)
	assert.Equal(t, "1.8.0\n", string(data))
}

func TestGenerateTimeout(t *testing.T) {
	requireShell(t)
	work := t.TempDir()
	script := writeScript(t, work, "sleep 5\n")

	cfg := testConfig(t, "/bin/sh", script)
	cfg.Generator.Timeout = "100ms"
	g := New(cfg, &ExecRunner{Logger: quietLogger(), WaitDelay: time.Second}).WithLogger(quietLogger())

	start := time.Now()
	_, err := g.Generate(context.Background(), []string{"1.0.0"}, Options{})
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryGenerator))
	assert.True(t, cerrors.IsRetryable(err))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunnerTimeoutKillsChildProcesses(t *testing.T) {
	requireShell(t)
	work := t.TempDir()
	marker := filepath.Join(work, "late.ckpt")
	script := writeScript(t, work, "/bin/sh -c \"sleep 1; touch '"+marker+"'\"\n")

	cfg := testConfig(t, "/bin/sh", script)
	cfg.Generator.Timeout = "200ms"
	g := New(cfg, &ExecRunner{Logger: quietLogger(), WaitDelay: 5 * time.Second}).WithLogger(quietLogger())

	start := time.Now()
	_, err := g.Generate(context.Background(), []string{"1.0.0"}, Options{})
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryGenerator))
	assert.Less(t, time.Since(start), time.Second, "timeout must not wait for grandchildren")

	time.Sleep(1500 * time.Millisecond)
	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "background child kept running after the timeout")
}

func TestGenerateCanceledWhileRunning(t *testing.T) {
	requireShell(t)
	work := t.TempDir()
	script := writeScript(t, work, "sleep 5\n")

	cfg := testConfig(t, "/bin/sh", script)
	g := New(cfg, &ExecRunner{Logger: quietLogger(), WaitDelay: time.Second}).WithLogger(quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	results, err := g.Generate(ctx, []string{"1.0.0", "1.1.0"}, Options{})
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryRuntime))
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
}

func TestSnapshotChanged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	before, err := TakeSnapshot(dir)
	require.NoError(t, err)
	assert.Empty(t, before)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "1.0.0"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.0.0", "a.ckpt"), []byte("a"), 0o600))
	mid, err := TakeSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0/a.ckpt"}, before.Changed(mid))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.0.0", "a.ckpt"), []byte("abc"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ckpt"), []byte("b"), 0o600))
	after, err := TakeSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0/a.ckpt", "b.ckpt"}, mid.Changed(after))
	assert.Empty(t, after.Changed(after))
}
