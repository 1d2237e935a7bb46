package generator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
)

// Command is a single subprocess invocation.
type Command struct {
	Argv  []string
	Dir   string
	Env   []string // appended to the inherited environment
	Attrs []slog.Attr
}

// Outcome describes a finished subprocess.
type Outcome struct {
	ExitCode int
	Tail     []string // last stderr (or stdout) lines, for error context
}

// Runner executes commands. ExecRunner is the production implementation; tests swap in fakes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Outcome, error)
}

// ExecRunner runs commands with os/exec and streams their output into the structured log.
type ExecRunner struct {
	Logger    *slog.Logger
	WaitDelay time.Duration
	TailLines int
}

// NewExecRunner returns an ExecRunner logging through slog.Default().
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Logger: slog.Default(), WaitDelay: 10 * time.Second, TailLines: 20}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (Outcome, error) {
	if len(c.Argv) == 0 {
		return Outcome{ExitCode: -1}, errors.New("empty command")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(attrsToArgs(c.Attrs)...)

	// #nosec G204 -- argv comes from the operator's configuration file
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.WaitDelay = r.WaitDelay
	setProcessGroup(cmd)

	tail := newTail(r.TailLines)
	stdout := &lineWriter{logger: logger, stream: "stdout", tail: tail}
	stderr := &lineWriter{logger: logger, stream: "stderr", tail: tail}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug("Running command", logfields.Command(c.Argv), logfields.Path(c.Dir))
	err := cmd.Run()
	stdout.flush()
	stderr.flush()

	out := Outcome{ExitCode: 0, Tail: tail.lines()}
	if err != nil {
		out.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		}
		return out, err
	}
	return out, nil
}

func attrsToArgs(attrs []slog.Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return args
}

// lineWriter turns a byte stream into one log record per line.
type lineWriter struct {
	logger *slog.Logger
	stream string
	tail   *tail
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line: put it back for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	w.tail.add(line)
	w.logger.Info(line, logfields.Stream(w.stream))
}

// tail keeps the last n lines written by either stream.
type tail struct {
	mu  sync.Mutex
	n   int
	buf []string
}

func newTail(n int) *tail {
	if n <= 0 {
		n = 20
	}
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
}

func (t *tail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
