package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/legacyckpt/internal/archive"
	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/generator"
	"git.home.luguber.info/inful/legacyckpt/internal/history"
	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
	"git.home.luguber.info/inful/legacyckpt/internal/metrics"
	"git.home.luguber.info/inful/legacyckpt/internal/publish"
	"git.home.luguber.info/inful/legacyckpt/internal/retry"
	"git.home.luguber.info/inful/legacyckpt/internal/storage"
	"git.home.luguber.info/inful/legacyckpt/internal/versions"
	"git.home.luguber.info/inful/legacyckpt/internal/workspace"
)

// Request selects what a run does.
type Request struct {
	Stages       []Stage // empty = AllStages
	Only         []string
	SkipExisting bool
	DryRun       bool
}

// Pipeline wires the stage implementations together. Dependencies that are not
// injected are built from configuration on first use and released after the run.
type Pipeline struct {
	cfg      *config.Config
	store    storage.ObjectStore
	history  history.Store
	runner   generator.Runner
	recorder metrics.Recorder
	logger   *slog.Logger
	newRunID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore injects the object store instead of opening storage.backend.
func WithStore(s storage.ObjectStore) Option { return func(p *Pipeline) { p.store = s } }

// WithHistory injects the run history store instead of opening history.path.
func WithHistory(h history.Store) Option { return func(p *Pipeline) { p.history = h } }

// WithRunner replaces the subprocess runner.
func WithRunner(r generator.Runner) Option { return func(p *Pipeline) { p.runner = r } }

// WithRecorder injects a metrics recorder. Without one, a Prometheus recorder is
// created when metrics.textfile_path is set.
func WithRecorder(r metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option { return func(p *Pipeline) { p.newRunID = fn } }

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		logger:   slog.Default(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries per-run state so a Pipeline can be reused.
type run struct {
	req      Request
	report   *Report
	logger   *slog.Logger
	recorder metrics.Recorder
	registry *prom.Registry

	store       storage.ObjectStore
	history     history.Store
	ownsHistory bool
	workspace   *workspace.Manager
	archivePath string
}

// Run executes the requested stages in order and stops at the first failure.
// The report is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, req Request) (rep *Report, err error) {
	stages := req.Stages
	if len(stages) == 0 {
		stages = AllStages
	}
	want := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		if !known(s) {
			return nil, cerrors.ValidationFailed("stages", fmt.Sprintf("unknown stage %q", s))
		}
		want[s] = true
	}
	if want[StageUpload] && !want[StageArchive] {
		return nil, cerrors.ValidationFailed("stages", "upload requires the archive stage")
	}
	if req.SkipExisting && p.history == nil && p.cfg.History.Disabled {
		return nil, cerrors.ValidationFailed("history.disabled", "--skip-existing needs the run history")
	}

	runID := p.newRunID()
	r := &run{
		req:    req,
		logger: p.logger.With(logfields.RunID(runID)),
		report: &Report{
			RunID:      runID,
			ConfigHash: p.cfg.Snapshot(),
			StartedAt:  time.Now().UTC(),
			DryRun:     req.DryRun,
			Versions:   []string{},
			Results:    []generator.Result{},
		},
		store:   p.store,
		history: p.history,
	}
	for _, s := range ordered(want) {
		r.report.Stages = append(r.report.Stages, StageTiming{Stage: s, Status: StageNotRun})
	}
	r.recorder, r.registry = p.buildRecorder()

	r.logger.Info("Run started", slog.Bool("dry_run", req.DryRun), slog.Int("stages", len(r.report.Stages)))
	defer func() {
		if ferr := p.finish(r, err); ferr != nil && err == nil {
			err = ferr
		}
		rep = r.report
	}()

	for _, st := range r.report.Stages {
		if err := p.stage(ctx, r, st.Stage); err != nil {
			return r.report, err
		}
	}
	return r.report, nil
}

func (p *Pipeline) buildRecorder() (metrics.Recorder, *prom.Registry) {
	if p.recorder != nil {
		return p.recorder, nil
	}
	if p.cfg.Metrics.TextfilePath == "" {
		return metrics.NoopRecorder{}, nil
	}
	reg := prom.NewRegistry()
	return metrics.NewPrometheusRecorder(reg), reg
}

func (p *Pipeline) stage(ctx context.Context, r *run, s Stage) error {
	idx := -1
	for i := range r.report.Stages {
		if r.report.Stages[i].Stage == s {
			idx = i
		}
	}
	log := r.logger.With(logfields.Stage(string(s)))
	start := time.Now()
	log.Info("Stage started")

	var err error
	switch s {
	case StagePrepare:
		err = p.prepare(ctx, r, log)
	case StageGenerate:
		err = p.generate(ctx, r, log)
	case StageSync:
		err = p.sync(ctx, r, log)
	case StageArchive:
		err = p.archive(r, log)
	case StageUpload:
		err = p.upload(ctx, r, log)
	}
	err = classify(s, err)

	d := time.Since(start)
	timing := &r.report.Stages[idx]
	timing.StartedAt = start.UTC()
	timing.DurationMS = float64(d.Microseconds()) / 1000
	r.recorder.ObserveStageDuration(string(s), d)
	if err != nil {
		timing.Status = StageFailed
		timing.Error = err.Error()
		r.recorder.IncStageResult(string(s), resultLabel(err))
		log.Error("Stage failed", logfields.Elapsed(d), logfields.Error(err))
		return err
	}
	timing.Status = StageSucceeded
	r.recorder.IncStageResult(string(s), metrics.ResultSuccess)
	log.Info("Stage completed", logfields.Elapsed(d))
	return nil
}

// classify gives unclassified stage errors the category of the stage they came from.
func classify(s Stage, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := cerrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cerrors.Wrap(err, cerrors.CategoryRuntime, cerrors.SeverityFatal, "run canceled").
			WithContext("stage", string(s))
	}
	switch s {
	case StageSync, StageUpload:
		return cerrors.StorageFailed(string(s), "", err)
	case StageArchive:
		return cerrors.ArchiveFailed("", err)
	case StagePrepare:
		return cerrors.PrepareFailed("", err)
	default:
		return cerrors.Wrap(err, cerrors.CategoryRuntime, cerrors.SeverityFatal, string(s)+" failed")
	}
}

func resultLabel(err error) metrics.ResultLabel {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return metrics.ResultCanceled
	}
	return metrics.ResultFailed
}

func (p *Pipeline) newGenerator(r *run, log *slog.Logger) *generator.Generator {
	return generator.New(p.cfg, p.runner).
		WithRetry(retry.FromConfig(p.cfg.Retry)).
		WithRecorder(r.recorder).
		WithLogger(log)
}

func (p *Pipeline) prepare(ctx context.Context, r *run, log *slog.Logger) error {
	return p.newGenerator(r, log).Prepare(ctx, r.req.DryRun)
}

func (p *Pipeline) generate(ctx context.Context, r *run, log *slog.Logger) error {
	all, err := versions.Resolve(ctx, p.cfg.Versions)
	if err != nil {
		return err
	}
	selected, err := versions.Filter(all, r.req.Only)
	if err != nil {
		return err
	}
	r.report.Versions = selected
	log.Info("Resolved versions", logfields.Count(len(selected)))

	if err := p.openHistory(r); err != nil {
		return err
	}

	opts := generator.Options{DryRun: r.req.DryRun}
	if r.req.SkipExisting {
		done, err := r.history.Succeeded(ctx)
		if err != nil {
			return cerrors.HistoryFailed("read", err)
		}
		opts.Skip = func(v string) bool { return done[v] }
	}
	opts.OnResult = func(res generator.Result) { p.recordHistory(ctx, r, res) }

	results, err := p.newGenerator(r, log).Generate(ctx, selected, opts)
	r.report.Results = append(r.report.Results, results...)
	return err
}

// openHistory opens the configured store unless history is disabled. Dry runs
// only open it when they need to read it.
func (p *Pipeline) openHistory(r *run) error {
	if r.history != nil || p.cfg.History.Disabled {
		return nil
	}
	if r.req.DryRun && !r.req.SkipExisting {
		return nil
	}
	h, err := history.NewSQLiteStore(p.cfg.History.Path)
	if err != nil {
		return cerrors.HistoryFailed("open", err).WithContext("path", p.cfg.History.Path)
	}
	r.history = h
	r.ownsHistory = true
	return nil
}

func (p *Pipeline) recordHistory(ctx context.Context, r *run, res generator.Result) {
	if r.history == nil || r.req.DryRun {
		return
	}
	var status history.Status
	switch res.Status {
	case generator.StatusSucceeded:
		status = history.StatusSucceeded
	case generator.StatusFailed:
		status = history.StatusFailed
	case generator.StatusSkipped:
		status = history.StatusSkipped
	default:
		return
	}
	// an interrupted attempt is still recorded
	err := r.history.Record(context.WithoutCancel(ctx), history.Entry{
		RunID:     r.report.RunID,
		Version:   res.Version,
		Status:    status,
		ExitCode:  res.ExitCode,
		Duration:  res.Duration,
		FileCount: len(res.Files),
	})
	if err != nil {
		r.logger.Warn("Failed to record run history", logfields.Version(res.Version), logfields.Error(err))
	}
}

func (p *Pipeline) publisher(ctx context.Context, r *run, log *slog.Logger) (*publish.Publisher, error) {
	if r.store == nil {
		s, err := storage.Open(ctx, p.cfg.Storage)
		if err != nil {
			return nil, err
		}
		r.store = s
	}
	return publish.New(r.store, p.cfg.Storage).WithRecorder(r.recorder).WithLogger(log), nil
}

func (p *Pipeline) sync(ctx context.Context, r *run, log *slog.Logger) error {
	dir := p.cfg.CheckpointsDir
	if r.req.DryRun {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Info("Checkpoints directory does not exist yet, nothing to sync", logfields.Path(dir))
			r.report.Sync = &publish.SyncResult{Prefix: config.NormalizePrefix(p.cfg.Storage.SyncPrefix), DryRun: true}
			return nil
		}
	}
	pub, err := p.publisher(ctx, r, log)
	if err != nil {
		return err
	}
	res, err := pub.Sync(ctx, dir, r.req.DryRun)
	r.report.Sync = res
	return err
}

func (p *Pipeline) archive(r *run, log *slog.Logger) error {
	if p.cfg.Archive.KeepLocal {
		r.workspace = workspace.NewPersistentManager(filepath.Dir(filepath.Clean(p.cfg.CheckpointsDir)))
	} else {
		r.workspace = workspace.NewManager("")
	}
	r.workspace.WithLogger(log)
	if err := r.workspace.Create(); err != nil {
		return cerrors.FileSystemError("create workspace", err).WithContext("path", r.workspace.Path())
	}
	path, err := r.workspace.File(p.cfg.Storage.ArchiveName)
	if err != nil {
		return cerrors.FileSystemError("create workspace", err)
	}
	r.archivePath = path

	if r.req.DryRun {
		log.Info("Would archive checkpoints", logfields.Path(p.cfg.CheckpointsDir), slog.String("archive", path))
		r.report.Archive = &archive.Result{Path: path}
		return nil
	}
	res, err := archive.ZipDir(p.cfg.CheckpointsDir, path, archive.Options{CompressionLevel: p.cfg.Archive.CompressionLevel})
	if err != nil {
		return err
	}
	r.report.Archive = res
	log.Info("Archive written", logfields.Path(res.Path), logfields.Count(res.Entries), logfields.Bytes(res.Size))
	return nil
}

func (p *Pipeline) upload(ctx context.Context, r *run, log *slog.Logger) error {
	pub, err := p.publisher(ctx, r, log)
	if err != nil {
		return err
	}
	res, err := pub.Upload(ctx, r.archivePath, r.req.DryRun)
	r.report.Upload = res
	return err
}

// finish stamps the report, flushes metrics and report files and releases
// resources the run opened itself.
func (p *Pipeline) finish(r *run, runErr error) error {
	rep := r.report
	rep.FinishedAt = time.Now().UTC()
	switch {
	case runErr == nil:
		rep.Outcome = OutcomeSucceeded
	case errors.Is(runErr, context.Canceled):
		rep.Outcome = OutcomeCanceled
		rep.Error = runErr.Error()
	default:
		rep.Outcome = OutcomeFailed
		rep.Error = runErr.Error()
	}

	d := rep.FinishedAt.Sub(rep.StartedAt)
	r.recorder.ObserveRunDuration(d)
	switch rep.Outcome {
	case OutcomeSucceeded:
		r.recorder.IncRunOutcome(metrics.ResultSuccess)
	case OutcomeCanceled:
		r.recorder.IncRunOutcome(metrics.ResultCanceled)
	default:
		r.recorder.IncRunOutcome(metrics.ResultFailed)
	}

	var errs []error
	if r.workspace != nil {
		if r.workspace.Persistent() && r.archivePath != "" {
			r.logger.Info("Local archive kept", logfields.Path(r.archivePath))
		}
		if err := r.workspace.Cleanup(); err != nil {
			r.logger.Warn("Workspace cleanup failed", logfields.Error(err))
		}
	}
	if r.ownsHistory {
		if err := r.history.Close(); err != nil {
			r.logger.Warn("Closing run history failed", logfields.Error(err))
		}
	}
	if r.registry != nil {
		if err := metrics.WriteTextfile(p.cfg.Metrics.TextfilePath, r.registry); err != nil {
			errs = append(errs, cerrors.FileSystemError("write metrics", err))
		}
	}
	if p.cfg.Report.Path != "" {
		if err := WriteReport(p.cfg.Report.Path, rep); err != nil {
			errs = append(errs, cerrors.FileSystemError("write report", err))
		} else {
			r.logger.Info("Report written", logfields.Path(p.cfg.Report.Path))
		}
	}

	r.logger.Info("Run finished", slog.String("outcome", string(rep.Outcome)), logfields.Elapsed(d))
	return errors.Join(errs...)
}
