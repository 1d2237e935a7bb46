// Package generator runs the external checkpoint generation command once per
// version, strictly one process at a time, and records what each run produced.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
	"git.home.luguber.info/inful/legacyckpt/internal/metrics"
	"git.home.luguber.info/inful/legacyckpt/internal/retry"
)

// VersionPlaceholder is replaced by the version in generator argv elements.
const VersionPlaceholder = "{version}"

// Status is the outcome of one version.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusPlanned   Status = "planned" // dry run
)

// Result records one version's generation.
type Result struct {
	Version  string        `json:"version"`
	Status   Status        `json:"status"`
	Attempts int           `json:"attempts"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
	Files    []string      `json:"files,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Options tune a Generate call.
type Options struct {
	DryRun   bool
	Skip     func(version string) bool // true = do not run this version
	OnResult func(Result)              // called after every version, including skipped ones
}

// Generator drives the per-version loop.
type Generator struct {
	argv           []string
	workdir        string
	env            []string
	timeout        time.Duration
	checkpointsDir string
	prepare        [][]string
	prepareDir     string

	runner   Runner
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New builds a Generator from configuration. A nil runner selects ExecRunner.
func New(cfg *config.Config, runner Runner) *Generator {
	if runner == nil {
		runner = NewExecRunner()
	}
	env := make([]string, 0, len(cfg.Generator.Env))
	for k, v := range cfg.Generator.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	return &Generator{
		argv:           append([]string(nil), cfg.Generator.Command...),
		workdir:        cfg.Generator.Workdir,
		env:            env,
		timeout:        cfg.GeneratorTimeout(),
		checkpointsDir: cfg.CheckpointsDir,
		prepare:        cfg.Prepare.Commands,
		prepareDir:     cfg.Prepare.Workdir,
		runner:         runner,
		policy:         retry.FromConfig(cfg.Retry),
		recorder:       metrics.NoopRecorder{},
		logger:         slog.Default(),
	}
}

// WithRetry overrides the retry policy. A policy that cannot be applied is
// ignored with a warning and the current one stays in effect.
func (g *Generator) WithRetry(p retry.Policy) *Generator {
	if err := p.Validate(); err != nil {
		g.logger.Warn("Ignoring invalid retry policy", logfields.Error(err))
		return g
	}
	g.policy = p
	return g
}

// WithRecorder injects a metrics recorder.
func (g *Generator) WithRecorder(r metrics.Recorder) *Generator {
	if r != nil {
		g.recorder = r
	}
	return g
}

// WithLogger overrides the logger.
func (g *Generator) WithLogger(l *slog.Logger) *Generator {
	if l != nil {
		g.logger = l
		if er, ok := g.runner.(*ExecRunner); ok {
			er.Logger = l
		}
	}
	return g
}

// Argv returns the command line for version. The placeholder is substituted
// wherever it appears; without one the version becomes the last argument.
func (g *Generator) Argv(version string) []string {
	out := make([]string, 0, len(g.argv)+1)
	substituted := false
	for _, a := range g.argv {
		if strings.Contains(a, VersionPlaceholder) {
			a = strings.ReplaceAll(a, VersionPlaceholder, version)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, version)
	}
	return out
}

// Prepare runs the setup commands in order. Any failure aborts.
func (g *Generator) Prepare(ctx context.Context, dryRun bool) error {
	for _, argv := range g.prepare {
		if dryRun {
			g.logger.Info("Would run prepare command", logfields.Command(argv))
			continue
		}
		g.logger.Info("Running prepare command", logfields.Command(argv))
		out, err := g.runner.Run(ctx, Command{Argv: argv, Dir: g.prepareDir, Attrs: []slog.Attr{logfields.Stage("prepare")}})
		if err != nil {
			return cerrors.PrepareFailed(strings.Join(argv, " "), withTail(err, out.Tail)).
				WithContext("exit_code", out.ExitCode)
		}
	}
	return nil
}

// Generate runs every version in order. It stops at the first failed version and
// returns the results collected so far together with the classified error.
func (g *Generator) Generate(ctx context.Context, versions []string, opts Options) ([]Result, error) {
	results := make([]Result, 0, len(versions))
	report := func(r Result) {
		results = append(results, r)
		if opts.OnResult != nil {
			opts.OnResult(r)
		}
	}

	for i, v := range versions {
		if err := ctx.Err(); err != nil {
			return results, cerrors.Wrap(err, cerrors.CategoryRuntime, cerrors.SeverityFatal, "generation canceled").
				WithContext("version", v)
		}
		log := g.logger.With(logfields.Version(v))

		if opts.Skip != nil && opts.Skip(v) {
			log.Info("Skipping version already generated")
			g.recorder.ObserveVersionDuration(v, 0, metrics.ResultSkipped)
			report(Result{Version: v, Status: StatusSkipped})
			continue
		}

		argv := g.Argv(v)
		if opts.DryRun {
			log.Info("Would generate checkpoint", logfields.Command(argv))
			report(Result{Version: v, Status: StatusPlanned})
			continue
		}

		log.Info("Generating checkpoint", slog.Int("index", i+1), slog.Int("total", len(versions)), logfields.Command(argv))
		res, err := g.generateOne(ctx, v, argv, log)
		report(res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (g *Generator) generateOne(ctx context.Context, version string, argv []string, log *slog.Logger) (Result, error) {
	res := Result{Version: version}
	start := time.Now()

	before, err := TakeSnapshot(g.checkpointsDir)
	if err != nil {
		return g.fail(res, start, cerrors.FileSystemError("snapshot checkpoints dir", err))
	}

	env := append([]string{
		"LEGACYCKPT_VERSION=" + version,
		"LEGACYCKPT_CHECKPOINTS_DIR=" + absOrSelf(g.checkpointsDir),
	}, g.env...)

	var lastOutcome Outcome
	runErr := g.policy.Do(ctx, func(err error) bool { return ctx.Err() == nil }, func(attempt int) error {
		res.Attempts = attempt
		if attempt > 1 {
			g.recorder.IncGeneratorRetry(version)
			log.Warn("Retrying checkpoint generation", logfields.Attempt(attempt))
		}
		attemptCtx, cancel := g.attemptContext(ctx)
		defer cancel()

		out, err := g.runner.Run(attemptCtx, Command{
			Argv:  argv,
			Dir:   g.workdir,
			Env:   env,
			Attrs: []slog.Attr{logfields.Version(version)},
		})
		lastOutcome = out
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return cerrors.GeneratorTimeout(version, fmt.Errorf("exceeded %s: %w", g.timeout, err))
		}
		return err
	})
	res.ExitCode = lastOutcome.ExitCode
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// the process was killed because the run was interrupted, not because it failed
			return g.fail(res, start, cerrors.Wrap(ctxErr, cerrors.CategoryRuntime, cerrors.SeverityFatal, "generation canceled").
				WithContext("version", version))
		}
		if ce, ok := cerrors.As(runErr); ok {
			return g.fail(res, start, ce)
		}
		return g.fail(res, start, cerrors.GeneratorFailed(version, lastOutcome.ExitCode, withTail(runErr, lastOutcome.Tail)).
			WithContext("attempts", res.Attempts))
	}

	after, err := TakeSnapshot(g.checkpointsDir)
	if err != nil {
		return g.fail(res, start, cerrors.FileSystemError("snapshot checkpoints dir", err))
	}
	res.Files = before.Changed(after)
	res.Status = StatusSucceeded
	res.Duration = time.Since(start)
	if len(res.Files) == 0 {
		log.Warn("Generator produced no new files", logfields.Path(g.checkpointsDir))
	}
	g.recorder.ObserveVersionDuration(version, res.Duration, metrics.ResultSuccess)
	log.Info("Checkpoint generated", logfields.Count(len(res.Files)), logfields.Elapsed(res.Duration))
	return res, nil
}

func (g *Generator) fail(res Result, start time.Time, err *cerrors.CheckpointError) (Result, error) {
	res.Status = StatusFailed
	res.Duration = time.Since(start)
	res.Error = err.Error()
	g.recorder.ObserveVersionDuration(res.Version, res.Duration, metrics.ResultFailed)
	return res, err
}

func (g *Generator) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

func withTail(err error, tail []string) error {
	if len(tail) == 0 {
		return err
	}
	return fmt.Errorf("%w\n%s", err, strings.Join(tail, "\n"))
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
