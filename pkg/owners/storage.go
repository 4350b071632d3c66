package owners

import "time"

// RepoReader is the read side of the tree/ref storage collaborator. One
// reader is bound to one project; a revision names an immutable tree
// snapshot.
type RepoReader interface {
	// HeadOf returns the current revision of the branch tip, or a not-found
	// error when the branch does not exist.
	HeadOf(branch string) (string, error)

	// ReadBlob returns the file content at the given revision, or a
	// not-found error when no such file exists in that tree.
	ReadBlob(revision, path string) ([]byte, error)

	// ListTree returns every file path of the revision's tree in lexical
	// order.
	ListTree(revision string) ([]string, error)

	// RevisionExists reports whether the revision names a commit reachable
	// in the repository.
	RevisionExists(revision string) bool
}

// PersonIdent identifies the author or committer of a commit.
type PersonIdent struct {
	Name  string
	Email string
	When  time.Time
}

// TreeChange describes one file mutation of a commit. Nil content deletes
// the file.
type TreeChange struct {
	Path    string
	Content []byte
}

// RepoWriter is the write side of the storage collaborator. Commit is an
// optimistic compare-and-swap on the branch tip: it fails with a
// compare-failed error when parentRevision is no longer the current tip.
// Retry-on-conflict is owned by the caller.
type RepoWriter interface {
	Commit(branch, parentRevision string, changes []TreeChange, author, committer PersonIdent, message string) (string, error)
}
