package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/history"
	"git.home.luguber.info/inful/legacyckpt/internal/storage"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("legacyckpt"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Context: context.Background(), Stdout: &out, Stderr: io.Discard}, &cli)
	return out.String(), err
}

type project struct {
	dir         string
	config      string
	checkpoints string
	bucket      string
	history     string
	report      string
}

// newProject lays out a versions list, a generator script and a config using
// the fs storage backend.
func newProject(t *testing.T, versions string, script string) *project {
	t.Helper()
	dir := t.TempDir()
	p := &project{
		dir:         dir,
		config:      filepath.Join(dir, "legacyckpt.yaml"),
		checkpoints: filepath.Join(dir, "checkpoints"),
		bucket:      filepath.Join(dir, "bucket"),
		history:     filepath.Join(dir, "state", "history.db"),
		report:      filepath.Join(dir, "report.json"),
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "versions.txt"), []byte(versions), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "generate.sh"), []byte(script), 0o600))

	cfg := fmt.Sprintf(`versions:
  file: %s
generator:
  command: ["/bin/sh", "%s", "{version}"]
  workdir: %s
checkpoints_dir: %s
storage:
  backend: fs
  fs_root: %s
history:
  path: %s
report:
  path: %s
`, filepath.Join(dir, "versions.txt"), filepath.Join(dir, "generate.sh"), dir, p.checkpoints, p.bucket, p.history, p.report)
	require.NoError(t, os.WriteFile(p.config, []byte(cfg), 0o600))
	return p
}

const okScript = `mkdir -p "$LEGACYCKPT_CHECKPOINTS_DIR/$1"
echo "checkpoint $1" > "$LEGACYCKPT_CHECKPOINTS_DIR/$1/model.ckpt"
echo "generated $1"
`

func TestInitWritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacyckpt.yaml")

	out, err := runCLI(t, "-c", path, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized successfully")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "generate_checkpoints.sh")

	_, err = runCLI(t, "-c", path, "init")
	require.Error(t, err)

	_, err = runCLI(t, "-c", path, "init", "--force")
	require.NoError(t, err)
}

func TestVersionsCommand(t *testing.T) {
	p := newProject(t, "1.9.0\n  2.0.0  \n\n# next\n2.1.0\n", okScript)

	out, err := runCLI(t, "-c", p.config, "versions")
	require.NoError(t, err)
	assert.Equal(t, "1.9.0\n2.0.0\n2.1.0\n", out)

	out, err = runCLI(t, "-c", p.config, "versions", "--only", "2.1.0", "--only", "1.9.0")
	require.NoError(t, err)
	assert.Equal(t, "1.9.0\n2.1.0\n", out)

	_, err = runCLI(t, "-c", p.config, "versions", "--only", "0.1.0")
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryValidation))
}

func TestRunCommandPublishesToFSBackend(t *testing.T) {
	p := newProject(t, "1.0.0\n1.1.0\n", okScript)

	out, err := runCLI(t, "-c", p.config, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "sync: 2 uploaded, 0 up to date -> legacy/checkpoints/")

	data, err := os.ReadFile(filepath.Join(p.bucket, "legacy", "checkpoints", "1.1.0", "model.ckpt"))
	require.NoError(t, err)
	assert.Equal(t, "checkpoint 1.1.0\n", string(data))

	fs, err := storage.NewFSStore(p.bucket)
	require.NoError(t, err)
	opts, err := fs.Options("legacy/checkpoints.zip")
	require.NoError(t, err)
	assert.Equal(t, "public-read", opts.ACL)

	var rep map[string]any
	raw, err := os.ReadFile(p.report)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, "succeeded", rep["outcome"])

	out, err = runCLI(t, "-c", p.config, "history", "--json")
	require.NoError(t, err)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, history.StatusSucceeded, entries[0].Status)

	// A second run with --skip-existing generates nothing and finds the bucket up to date.
	out, err = runCLI(t, "-c", p.config, "run", "--skip-existing", "--stages", "generate,sync")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "sync: 0 uploaded, 2 up to date")
}

func TestGenerateCommandFailure(t *testing.T) {
	p := newProject(t, "1.0.0\n2.0.0\n3.0.0\n", `if [ "$1" = "2.0.0" ]; then echo "no such tag" >&2; exit 4; fi
`+okScript)

	out, err := runCLI(t, "-c", p.config, "generate")
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryGenerator))
	assert.Equal(t, 11, cerrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "3.0.0")

	out, err = runCLI(t, "-c", p.config, "history")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "failed")
}

func TestGenerateDryRun(t *testing.T) {
	p := newProject(t, "1.0.0\n", okScript)
	out, err := runCLI(t, "-c", p.config, "generate", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "planned")
	_, statErr := os.Stat(p.checkpoints)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPublishWithoutCheckpointsFails(t *testing.T) {
	p := newProject(t, "1.0.0\n", okScript)
	_, err := runCLI(t, "-c", p.config, "publish")
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryFileSystem))
}

func TestMissingConfig(t *testing.T) {
	_, err := runCLI(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"), "versions")
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryConfig))
}

func TestRunRejectsUnknownStage(t *testing.T) {
	p := newProject(t, "1.0.0\n", okScript)
	_, err := runCLI(t, "-c", p.config, "run", "--stages", "deploy")
	require.Error(t, err)
	assert.True(t, cerrors.IsCategory(err, cerrors.CategoryValidation))
}

func TestHistoryEmpty(t *testing.T) {
	p := newProject(t, "1.0.0\n", okScript)
	out, err := runCLI(t, "-c", p.config, "history")
	require.NoError(t, err)
	assert.Equal(t, "No recorded runs\n", out)
}
