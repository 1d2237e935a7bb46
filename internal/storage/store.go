// Package storage abstracts the object store that legacy checkpoints are published to.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// ObjectInfo is the remote state used to decide whether a local file must be uploaded.
type ObjectInfo struct {
	Size     int64
	Modified time.Time
}

// PutOptions carries per-object upload settings.
type PutOptions struct {
	ACL         string // canned ACL, empty = bucket default
	ContentType string
}

// ObjectStore is the minimal surface the publish stages need.
type ObjectStore interface {
	// List returns every object whose key starts with prefix, keyed by full key.
	List(ctx context.Context, prefix string) (map[string]ObjectInfo, error)

	// Put uploads size bytes from body to key.
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error

	// URL renders a human-readable location for key (s3://bucket/key, file path, ...).
	URL(key string) string
}

// JoinKey joins a normalized prefix ("a/b/" or "") and a relative slash path.
func JoinKey(prefix, rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
	return prefix + rel
}

// ContentTypeFor picks a content type from the key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".zip":
		return "application/zip"
	case ".json":
		return "application/json"
	case ".txt", ".log":
		return "text/plain; charset=utf-8"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
