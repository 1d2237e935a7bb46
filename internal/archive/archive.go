// Package archive produces the zip that is uploaded next to the synced checkpoints.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
)

// Result summarizes a written archive.
type Result struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"` // files
	Dirs    int    `json:"dirs"`
	Size    int64  `json:"size"`
}

// Options tune archive creation.
type Options struct {
	// CompressionLevel 1..9; 0 keeps the library default.
	CompressionLevel int
}

// ZipDir writes srcDir recursively to dest. Entry names are rooted at the base
// name of srcDir, so "checkpoints/1.9.0/x.ckpt" unpacks next to the archive the
// same way `zip -r checkpoints.zip checkpoints` does, including a header for
// every directory. Entries are sorted for reproducible archives.
func ZipDir(srcDir, dest string, opts Options) (*Result, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, cerrors.ArchiveFailed(dest, fmt.Errorf("stat %s: %w", srcDir, err))
	}
	if !info.IsDir() {
		return nil, cerrors.ArchiveFailed(dest, fmt.Errorf("%s is not a directory", srcDir))
	}

	entries, err := collect(srcDir)
	if err != nil {
		return nil, cerrors.ArchiveFailed(dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return nil, cerrors.ArchiveFailed(dest, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".archive-*.zip")
	if err != nil {
		return nil, cerrors.ArchiveFailed(dest, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	zw := zip.NewWriter(tmp)
	if opts.CompressionLevel > 0 {
		level := opts.CompressionLevel
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}

	root := filepath.Base(filepath.Clean(srcDir))
	res := &Result{Path: dest}
	for _, e := range entries {
		name := root
		if e.rel != "." {
			name += "/" + filepath.ToSlash(e.rel)
		}
		if e.dir {
			err = addDir(zw, filepath.Join(srcDir, e.rel), name+"/")
			res.Dirs++
		} else {
			err = addFile(zw, filepath.Join(srcDir, e.rel), name)
			res.Entries++
		}
		if err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return nil, cerrors.ArchiveFailed(dest, err)
		}
	}
	if err := errors.Join(zw.Close(), tmp.Close()); err != nil {
		return nil, cerrors.ArchiveFailed(dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return nil, cerrors.ArchiveFailed(dest, err)
	}

	st, err := os.Stat(dest)
	if err != nil {
		return nil, cerrors.ArchiveFailed(dest, err)
	}
	res.Size = st.Size()
	return res, nil
}

type entry struct {
	rel string
	dir bool
}

// collect lists srcDir itself, its subdirectories and regular files, with
// every directory ahead of its contents.
func collect(srcDir string) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: rel, dir: d.IsDir()})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool { return sortKey(entries[i]) < sortKey(entries[j]) })
	return entries, err
}

func sortKey(e entry) string {
	if e.rel == "." {
		return ""
	}
	key := filepath.ToSlash(e.rel)
	if e.dir {
		key += "/"
	}
	return key
}

func addDir(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Store
	_, err = zw.CreateHeader(hdr)
	return err
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	return nil
}
