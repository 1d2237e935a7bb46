// Package versions resolves the ordered list of released versions that
// legacy checkpoints are generated for.
package versions

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode"

	"git.home.luguber.info/inful/legacyckpt/internal/config"
	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
	"git.home.luguber.info/inful/legacyckpt/internal/logfields"
)

// List is the parsed content of a versions file.
type List struct {
	Versions   []string // unique tokens in file order
	Duplicates []string // tokens dropped because they appeared earlier
}

// Parse reads one version token per line. Blank lines and '#' comments are
// skipped; a token containing whitespace is rejected with its line number.
func Parse(r io.Reader) (*List, error) {
	out := &List{}
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		token := strings.TrimSpace(scanner.Text())
		if line == 1 {
			token = strings.TrimPrefix(token, "\ufeff")
		}
		if token == "" || strings.HasPrefix(token, "#") {
			continue
		}
		if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
			return nil, cerrors.ValidationFailed("versions", fmt.Sprintf("line %d: %q contains whitespace", line, token)).
				WithContext("line", line)
		}
		if seen[token] {
			out.Duplicates = append(out.Duplicates, token)
			continue
		}
		seen[token] = true
		out.Versions = append(out.Versions, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read versions: %w", err)
	}
	return out, nil
}

// ReadFile parses the versions file at path.
func ReadFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cerrors.FileSystemError("open versions file", err).WithContext("path", path)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Filter restricts versions to the ones named in only, keeping list order.
// An empty only returns versions unchanged; a name not present is a validation error.
func Filter(versions, only []string) ([]string, error) {
	if len(only) == 0 {
		return versions, nil
	}
	known := make(map[string]bool, len(versions))
	for _, v := range versions {
		known[v] = true
	}
	wanted := make(map[string]bool, len(only))
	for _, v := range only {
		if !known[v] {
			return nil, cerrors.ValidationFailed("only", fmt.Sprintf("version %q is not in the versions list", v))
		}
		wanted[v] = true
	}
	out := make([]string, 0, len(wanted))
	for _, v := range versions {
		if wanted[v] {
			out = append(out, v)
		}
	}
	return out, nil
}

// Resolve produces the versions list from the configured source.
func Resolve(ctx context.Context, vc config.VersionsConfig) ([]string, error) {
	switch vc.Source {
	case config.VersionSourceGit:
		pattern, err := regexp.Compile(vc.TagPattern)
		if err != nil {
			return nil, cerrors.ValidationFailed("versions.tag_pattern", err.Error())
		}
		return FromGitTags(ctx, vc.Repository, pattern)
	default:
		list, err := ReadFile(vc.File)
		if err != nil {
			return nil, err
		}
		for _, d := range list.Duplicates {
			slog.Warn("Duplicate version ignored", logfields.Version(d), logfields.Path(vc.File))
		}
		return list.Versions, nil
	}
}
