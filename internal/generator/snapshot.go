package generator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type fileState struct {
	size    int64
	modTime time.Time
}

// Snapshot maps slash-separated relative paths under a directory to their size and mtime.
type Snapshot map[string]fileState

// TakeSnapshot walks dir; a missing directory yields an empty snapshot.
func TakeSnapshot(dir string) (Snapshot, error) {
	snap := make(Snapshot)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		snap[filepath.ToSlash(rel)] = fileState{size: info.Size(), modTime: info.ModTime()}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return snap, nil
}

// Changed lists files that are new in after or whose size or mtime differ, sorted.
func (before Snapshot) Changed(after Snapshot) []string {
	var out []string
	for path, st := range after {
		prev, ok := before[path]
		if !ok || prev.size != st.size || !prev.modTime.Equal(st.modTime) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}
