package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fsMetaDir = ".meta"

// FSStore mirrors objects into a local directory. Keys map to relative paths;
// per-object options are kept as JSON under .meta/ so ACLs stay inspectable.
type FSStore struct {
	root string
	mu   sync.Mutex
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) List(_ context.Context, prefix string) (map[string]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ObjectInfo)
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			if key == fsMetaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out[key] = ObjectInfo{Size: info.Size(), Modified: info.ModTime()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return out, nil
}

func (s *FSStore) Put(_ context.Context, key string, body io.Reader, size int64, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create parent for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, errors.Join(copyErr, closeErr))
	}
	if size >= 0 && n != size {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: short body (%d of %d bytes)", key, n, size)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return s.writeMeta(key, opts)
}

// Options returns the PutOptions recorded for key.
func (s *FSStore) Options(key string) (PutOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opts PutOptions
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		return opts, fmt.Errorf("options for %s: %w", key, err)
	}
	err = json.Unmarshal(data, &opts)
	return opts, err
}

func (s *FSStore) URL(key string) string {
	return "file://" + filepath.ToSlash(filepath.Join(s.root, filepath.FromSlash(key)))
}

func (s *FSStore) path(key string) (string, error) {
	clean := JoinKey("", key)
	if clean == "" || clean == fsMetaDir || strings.HasPrefix(clean, fsMetaDir+"/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FSStore) metaPath(key string) string {
	return filepath.Join(s.root, fsMetaDir, filepath.FromSlash(JoinKey("", key))+".json")
}

func (s *FSStore) writeMeta(key string, opts PutOptions) error {
	p := s.metaPath(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create meta dir: %w", err)
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
