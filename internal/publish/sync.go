// Package publish mirrors the checkpoints directory to object storage and
// uploads the public archive.
package publish

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
	"git.home.luguber.info/inful/legacyckpt/internal/metrics"
	"git.home.luguber.info/inful/legacyckpt/internal/storage"
)

// Operation labels used for object counters.
const (
	OpUploaded = "uploaded"
	OpSkipped  = "skipped"
)

// SyncResult counts what a sync did.
type SyncResult struct {
	Prefix   string   `json:"prefix"`
	Uploaded []string `json:"uploaded,omitempty"`
	Skipped  int      `json:"skipped"`
	Bytes    int64    `json:"bytes"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

// Publisher owns the storage-facing stages.
type Publisher struct {
	store    storage.ObjectStore
	cfg      config.StorageConfig
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New returns a Publisher writing to store.
func New(store storage.ObjectStore, cfg config.StorageConfig) *Publisher {
	return &Publisher{
		store:    store,
		cfg:      cfg,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
}

// WithRecorder sets the metrics recorder.
func (p *Publisher) WithRecorder(r metrics.Recorder) *Publisher {
	if r != nil {
		p.recorder = r
	}
	return p
}

// WithLogger sets the logger.
func (p *Publisher) WithLogger(l *slog.Logger) *Publisher {
	if l != nil {
		p.logger = l
	}
	return p
}

type localFile struct {
	rel     string
	path    string
	size    int64
	modTime time.Time
}

// Sync uploads every file under dir whose remote copy is missing, has a
// different size, or is older than the local file. Remote objects without a
// local counterpart are left alone. No ACL is set on synced objects.
func (p *Publisher) Sync(ctx context.Context, dir string, dryRun bool) (*SyncResult, error) {
	prefix := config.NormalizePrefix(p.cfg.SyncPrefix)
	res := &SyncResult{Prefix: prefix, DryRun: dryRun}

	files, err := walk(dir)
	if err != nil {
		return nil, cerrors.FileSystemError("walk "+dir, err)
	}

	remote, err := p.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		key := storage.JoinKey(prefix, f.rel)
		if info, ok := remote[key]; ok && upToDate(f, info) {
			res.Skipped++
			p.logger.Debug("Object up to date", logfields.Key(key))
			continue
		}
		if dryRun {
			p.logger.Info("Would upload", logfields.Key(key), logfields.Bytes(f.size))
			res.Uploaded = append(res.Uploaded, key)
			continue
		}
		if err := p.putFile(ctx, f.path, key, f.size, storage.PutOptions{ContentType: storage.ContentTypeFor(key)}); err != nil {
			return res, err
		}
		p.logger.Info("Uploaded", logfields.Key(key), logfields.Bytes(f.size))
		res.Uploaded = append(res.Uploaded, key)
		res.Bytes += f.size
	}

	p.recorder.AddObjects(OpUploaded, len(res.Uploaded))
	p.recorder.AddObjects(OpSkipped, res.Skipped)
	p.recorder.AddBytesUploaded(res.Bytes)
	p.logger.Info("Sync complete",
		slog.String("prefix", prefix),
		slog.Int("uploaded", len(res.Uploaded)),
		slog.Int("skipped", res.Skipped),
		logfields.Bytes(res.Bytes))
	return res, nil
}

// upToDate reports whether the remote object can stay as is. Remote stores
// report second precision, so the local time is truncated before comparing.
func upToDate(f localFile, info storage.ObjectInfo) bool {
	if info.Size != f.size {
		return false
	}
	return !f.modTime.Truncate(time.Second).After(info.Modified)
}

func (p *Publisher) putFile(ctx context.Context, path, key string, size int64, opts storage.PutOptions) error {
	fh, err := os.Open(path)
	if err != nil {
		return cerrors.FileSystemError("open "+path, err)
	}
	defer func() { _ = fh.Close() }()
	return p.store.Put(ctx, key, fh, size, opts)
}

func walk(dir string) ([]localFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	var files []localFile
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, localFile{rel: filepath.ToSlash(rel), path: p, size: fi.Size(), modTime: fi.ModTime()})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	return files, err
}
