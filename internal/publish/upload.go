package publish

import (
	"context"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
	"git.home.luguber.info/inful/legacyckpt/internal/storage"
)

// UploadResult describes the uploaded archive.
type UploadResult struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	PublicURL string `json:"public_url,omitempty"`
	ACL       string `json:"acl"`
	Bytes     int64  `json:"bytes"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// publicURLer is implemented by stores that can address objects over HTTPS.
type publicURLer interface {
	PublicURL(key string) string
}

// ArchiveKey is where the archive lands: archive_prefix + archive_name.
func (p *Publisher) ArchiveKey() string {
	return storage.JoinKey(config.NormalizePrefix(p.cfg.ArchivePrefix), p.cfg.ArchiveName)
}

// Upload copies the archive at path to ArchiveKey with the configured canned ACL.
func (p *Publisher) Upload(ctx context.Context, path string, dryRun bool) (*UploadResult, error) {
	key := p.ArchiveKey()
	acl := p.cfg.ArchiveACL
	if acl == "" {
		acl = config.DefaultArchiveACL
	}
	res := &UploadResult{Key: key, URL: p.store.URL(key), ACL: acl, DryRun: dryRun}
	if pu, ok := p.store.(publicURLer); ok && acl == config.DefaultArchiveACL {
		res.PublicURL = pu.PublicURL(key)
	}

	if dryRun {
		if st, err := os.Stat(path); err == nil {
			res.Bytes = st.Size()
		}
		p.logger.Info("Would upload archive", logfields.Path(path), logfields.Key(key), logfields.Bytes(res.Bytes))
		return res, nil
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, cerrors.FileSystemError("stat "+path, err)
	}
	res.Bytes = st.Size()
	if err := p.putFile(ctx, path, key, res.Bytes, storage.PutOptions{ACL: acl, ContentType: storage.ContentTypeFor(key)}); err != nil {
		return nil, err
	}
	p.recorder.AddObjects(OpUploaded, 1)
	p.recorder.AddBytesUploaded(res.Bytes)
	p.logger.Info("Uploaded archive", logfields.Key(key), logfields.Bytes(res.Bytes), slog.String("url", res.URL))
	return res, nil
}
