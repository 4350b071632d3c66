// Package git implements the tree/ref storage collaborator on top of the
// git command line: reads via plumbing queries against a ref or revision,
// writes via a temporary-index commit path with a compare-and-swap ref
// update.
package git

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gravitational/trace"

	"github.com/ownertree/ownertree/pkg/owners"
)

// Repo reads and writes one local git repository. It implements
// owners.RepoReader and owners.RepoWriter.
type Repo struct {
	dir      string
	executor gitCommandExecutor
}

func NewRepo(dir string) *Repo {
	return &Repo{dir: dir, executor: newRealGitExecutor(dir)}
}

func (r *Repo) HeadOf(branch string) (string, error) {
	output, err := r.executor.execute("git", "rev-parse", "--verify", branch+"^{commit}")
	if err != nil {
		return "", trace.NotFound("branch %q not found: %v", branch, err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (r *Repo) ReadBlob(revision, path string) ([]byte, error) {
	path = strings.TrimPrefix(path, "/")
	spec := fmt.Sprintf("%s:%s", revision, path)
	if _, err := r.executor.execute("git", "cat-file", "-e", spec); err != nil {
		return nil, trace.NotFound("%s not found at %s", path, revision)
	}
	output, err := r.executor.execute("git", "show", spec)
	if err != nil {
		return nil, trace.Wrap(err, "failed to read %s at %s", path, revision)
	}
	return output, nil
}

func (r *Repo) ListTree(revision string) ([]string, error) {
	output, err := r.executor.execute("git", "ls-tree", "-r", "--name-only", revision)
	if err != nil {
		return nil, trace.Wrap(err, "failed to list tree of %s", revision)
	}
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	paths := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			paths = append(paths, line)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Repo) RevisionExists(revision string) bool {
	_, err := r.executor.execute("git", "cat-file", "-e", revision+"^{commit}")
	return err == nil
}

// Commit writes one commit on top of parentRevision and advances the branch
// ref only if it still points at parentRevision. The worktree and the
// repository index are never touched; all tree building happens in a
// temporary index file.
func (r *Repo) Commit(branch, parentRevision string, changes []owners.TreeChange, author, committer owners.PersonIdent, message string) (string, error) {
	indexFile, err := os.CreateTemp("", "ownertree-index-*")
	if err != nil {
		return "", trace.Wrap(err)
	}
	indexPath := indexFile.Name()
	_ = indexFile.Close()
	_ = os.Remove(indexPath)
	defer os.Remove(indexPath)
	indexEnv := []string{"GIT_INDEX_FILE=" + filepath.Clean(indexPath)}

	if _, err := r.executor.executeWith(indexEnv, nil, "git", "read-tree", parentRevision); err != nil {
		return "", trace.Wrap(err, "failed to read tree of %s", parentRevision)
	}

	for _, change := range changes {
		path := strings.TrimPrefix(change.Path, "/")
		if change.Content == nil {
			if _, err := r.executor.executeWith(indexEnv, nil, "git", "update-index", "--force-remove", "--", path); err != nil {
				return "", trace.Wrap(err, "failed to remove %s", path)
			}
			continue
		}
		blobOut, err := r.executor.executeWith(nil, change.Content, "git", "hash-object", "-w", "--stdin")
		if err != nil {
			return "", trace.Wrap(err, "failed to write blob for %s", path)
		}
		blob := strings.TrimSpace(string(blobOut))
		cacheInfo := fmt.Sprintf("100644,%s,%s", blob, path)
		if _, err := r.executor.executeWith(indexEnv, nil, "git", "update-index", "--add", "--cacheinfo", cacheInfo); err != nil {
			return "", trace.Wrap(err, "failed to stage %s", path)
		}
	}

	treeOut, err := r.executor.executeWith(indexEnv, nil, "git", "write-tree")
	if err != nil {
		return "", trace.Wrap(err, "failed to write tree")
	}
	tree := strings.TrimSpace(string(treeOut))

	identEnv := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_COMMITTER_NAME=" + committer.Name,
		"GIT_COMMITTER_EMAIL=" + committer.Email,
	}
	commitOut, err := r.executor.executeWith(identEnv, nil, "git", "commit-tree", tree, "-p", parentRevision, "-m", message)
	if err != nil {
		return "", trace.Wrap(err, "failed to create commit")
	}
	commit := strings.TrimSpace(string(commitOut))

	// The old-value argument makes the ref update an atomic CAS: git
	// refuses to move the ref if someone else advanced it meanwhile.
	if _, err := r.executor.execute("git", "update-ref", branch, commit, parentRevision); err != nil {
		return "", trace.CompareFailed("branch %q moved since %s: %v", branch, parentRevision, err)
	}
	return commit, nil
}
