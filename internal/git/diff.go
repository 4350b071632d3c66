package git

import (
	"strings"

	"github.com/gravitational/trace"
	"github.com/sourcegraph/go-diff/diff"
)

// ChangedFiles extracts the post-image file paths from a unified multi-file
// diff, absolute against the tree root, in diff order without duplicates.
func ChangedFiles(unifiedDiff []byte) ([]string, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(unifiedDiff)
	if err != nil {
		return nil, trace.Wrap(err, "failed to parse diff")
	}
	seen := make(map[string]bool)
	files := make([]string, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "/dev/null" {
			// Deleted files still had owners; report the old path.
			name = fd.OrigName
		}
		// Strip the conventional a/ and b/ prefixes.
		if len(name) > 2 && (strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/")) {
			name = name[2:]
		}
		name = "/" + strings.TrimPrefix(name, "/")
		if name == "/dev/null" || seen[name] {
			continue
		}
		seen[name] = true
		files = append(files, name)
	}
	return files, nil
}
