package versions

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	cerrors "git.home.luguber.info/inful/legacyckpt/internal/errors"
)

// FromGitTags lists tags of a local repository path or a remote URL, keeps the ones
// matching pattern, strips a leading "v" and returns them in ascending version order.
func FromGitTags(ctx context.Context, repository string, pattern *regexp.Regexp) ([]string, error) {
	var names []string
	var err error
	if isRemote(repository) {
		names, err = remoteTags(ctx, repository)
	} else {
		names, err = localTags(repository)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !pattern.MatchString(name) {
			continue
		}
		v := strings.TrimPrefix(name, "v")
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return out, nil
}

func isRemote(repository string) bool {
	return strings.Contains(repository, "://") || strings.HasPrefix(repository, "git@")
}

func localTags(path string) ([]string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, cerrors.FileSystemError("open git repository", err).WithContext("path", path)
	}
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return names, nil
}

func remoteTags(ctx context.Context, url string) ([]string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{PeelingOption: git.IgnorePeeled})
	if err != nil {
		return nil, cerrors.WrapRetryable(err, cerrors.CategoryNetwork, cerrors.SeverityFatal, "list remote tags").
			WithContext("url", url)
	}
	var names []string
	for _, ref := range refs {
		if ref.Type() == plumbing.SymbolicReference || !ref.Name().IsTag() {
			continue
		}
		names = append(names, ref.Name().Short())
	}
	return names, nil
}
