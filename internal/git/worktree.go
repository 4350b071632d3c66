package git

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boyter/gocodewalker"
	"github.com/gravitational/trace"
)

// WorktreeRevision is the pseudo-revision a Worktree reports for every
// branch: a checked-out tree has exactly one snapshot.
const WorktreeRevision = "worktree"

// Worktree is a read-only owners.RepoReader over a checked-out directory,
// for resolving owners against the working tree without consulting refs.
type Worktree struct {
	dir string
}

func NewWorktree(dir string) (*Worktree, error) {
	stat, err := os.Lstat(dir)
	if err != nil || !stat.IsDir() {
		return nil, trace.BadParameter("%s is not a directory", dir)
	}
	return &Worktree{dir: dir}, nil
}

func (w *Worktree) HeadOf(branch string) (string, error) {
	return WorktreeRevision, nil
}

func (w *Worktree) ReadBlob(revision, path string) ([]byte, error) {
	if revision != WorktreeRevision {
		return nil, trace.NotFound("revision %q not found in worktree", revision)
	}
	content, err := os.ReadFile(filepath.Join(w.dir, strings.TrimPrefix(path, "/")))
	if err != nil {
		return nil, trace.NotFound("%s not found in worktree", path)
	}
	return content, nil
}

func (w *Worktree) ListTree(revision string) ([]string, error) {
	if revision != WorktreeRevision {
		return nil, trace.NotFound("revision %q not found in worktree", revision)
	}
	fileListQueue := make(chan *gocodewalker.File, 100)
	walker := gocodewalker.NewFileWalker(w.dir, fileListQueue)
	walker.IncludeHidden = true
	walker.ExcludeDirectory = []string{".git"}

	errChan := make(chan error)
	go func() {
		errChan <- walker.Start()
		close(errChan)
	}()

	paths := make([]string, 0)
	for file := range fileListQueue {
		rel, err := filepath.Rel(w.dir, file.Location)
		if err != nil {
			continue
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	if err := <-errChan; err != nil {
		return nil, trace.Wrap(err, "failed to walk %s", w.dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func (w *Worktree) RevisionExists(revision string) bool {
	return revision == WorktreeRevision
}
