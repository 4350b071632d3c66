package owners

import (
	"crypto/sha256"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gravitational/trace"
)

// MemRepo is an in-memory RepoReader/RepoWriter used by tests and dry runs.
// Revisions are content-addressed over the tree plus the parent revision, so
// two commits with identical trees on different histories stay distinct.
type MemRepo struct {
	mu        sync.RWMutex
	branches  map[string]string
	revisions map[string]map[string][]byte
	parents   map[string]string
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		branches:  make(map[string]string),
		revisions: make(map[string]map[string][]byte),
		parents:   make(map[string]string),
	}
}

// SeedBranch creates or replaces a branch whose tree holds the given files
// (keyed by absolute slash paths) and returns the new revision.
func (m *MemRepo) SeedBranch(branch string, files map[string][]byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tree := make(map[string][]byte, len(files))
	for p, content := range files {
		tree[strings.TrimPrefix(p, "/")] = slices.Clone(content)
	}
	rev := treeRevision(tree, m.branches[branch])
	m.revisions[rev] = tree
	m.parents[rev] = m.branches[branch]
	m.branches[branch] = rev
	return rev
}

func (m *MemRepo) HeadOf(branch string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rev, ok := m.branches[branch]
	if !ok {
		return "", trace.NotFound("branch %q not found", branch)
	}
	return rev, nil
}

func (m *MemRepo) ReadBlob(revision, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.revisions[revision]
	if !ok {
		return nil, trace.NotFound("revision %q not found", revision)
	}
	content, ok := tree[strings.TrimPrefix(path, "/")]
	if !ok {
		return nil, trace.NotFound("%s not found at %s", path, revision)
	}
	return slices.Clone(content), nil
}

func (m *MemRepo) ListTree(revision string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tree, ok := m.revisions[revision]
	if !ok {
		return nil, trace.NotFound("revision %q not found", revision)
	}
	paths := slices.Collect(maps.Keys(tree))
	sort.Strings(paths)
	return paths, nil
}

func (m *MemRepo) RevisionExists(revision string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revisions[revision]
	return ok
}

func (m *MemRepo) Commit(branch, parentRevision string, changes []TreeChange, author, committer PersonIdent, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.branches[branch]
	if !ok {
		return "", trace.NotFound("branch %q not found", branch)
	}
	if current != parentRevision {
		return "", trace.CompareFailed("branch %q moved from %s to %s", branch, parentRevision, current)
	}
	tree := maps.Clone(m.revisions[current])
	if tree == nil {
		tree = make(map[string][]byte)
	}
	for _, change := range changes {
		p := strings.TrimPrefix(change.Path, "/")
		if change.Content == nil {
			delete(tree, p)
			continue
		}
		tree[p] = slices.Clone(change.Content)
	}
	rev := treeRevision(tree, current)
	m.revisions[rev] = tree
	m.parents[rev] = current
	m.branches[branch] = rev
	return rev, nil
}

// ParentOf returns the parent revision of a commit, or empty for a root.
func (m *MemRepo) ParentOf(revision string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parents[revision]
}

func treeRevision(tree map[string][]byte, parent string) string {
	paths := slices.Collect(maps.Keys(tree))
	sort.Strings(paths)
	h := sha256.New()
	fmt.Fprintf(h, "parent %s\n", parent)
	for _, p := range paths {
		fmt.Fprintf(h, "%s %x\n", p, sha256.Sum256(tree[p]))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:40]
}
