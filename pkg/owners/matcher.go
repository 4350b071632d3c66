package owners

import (
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gravitational/trace"
)

// PathMatcher evaluates whether a glob path expression matches a path that
// has already been relativized against the owning directory.
type PathMatcher interface {
	// Matches returns whether the expression matches the relative path.
	// Malformed expressions never match and never produce an error; passing
	// an absolute path is a caller bug and returns one.
	Matches(expression, relativePath string) (bool, error)
}

// StrictMatcher is the default glob dialect: `*` matches within a single
// path segment, `**` matches across segments, and bracket classes and brace
// alternation are supported.
type StrictMatcher struct {
	Warnings io.Writer
}

func (m StrictMatcher) Matches(expression, relativePath string) (bool, error) {
	return matchGlob(rewriteGluedDoubleStars(expression), relativePath, m.Warnings)
}

// FindOwnersMatcher is the find-owners-compatible dialect: every `*` matches
// across path segment boundaries, so `*.md` also matches `foo/README.md`.
type FindOwnersMatcher struct {
	Warnings io.Writer
}

func (m FindOwnersMatcher) Matches(expression, relativePath string) (bool, error) {
	return matchGlob(rewriteLoneStars(expression), relativePath, m.Warnings)
}

// rewriteGluedDoubleStars keeps `**` crossing segments even when it is glued
// to other text. doublestar treats `**` as crossing only when it forms a
// whole path component, so `**.md` is hoisted into `**/*.md` (in doublestar
// a `**` component also matches zero segments, which keeps `README.md` at
// the root matching).
func rewriteGluedDoubleStars(expression string) string {
	segments := strings.Split(expression, "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if strings.Contains(segment, "**") && !allStars(segment) {
			out = append(out, "**", collapseStarRuns(segment))
			continue
		}
		out = append(out, segment)
	}
	return strings.Join(out, "/")
}

// rewriteLoneStars is the find-owners pre-pass: a segment of bare stars
// becomes a `**` component, and a segment mixing stars with text is hoisted
// behind one, so `*.md` becomes `**/*.md` and `foo/*` becomes `foo/**`.
func rewriteLoneStars(expression string) string {
	segments := strings.Split(expression, "/")
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch {
		case !strings.Contains(segment, "*"):
			out = append(out, segment)
		case allStars(segment):
			out = append(out, "**")
		default:
			out = append(out, "**", collapseStarRuns(segment))
		}
	}
	return strings.Join(out, "/")
}

func allStars(segment string) bool {
	return segment != "" && strings.Count(segment, "*") == len(segment)
}

func collapseStarRuns(segment string) string {
	var b strings.Builder
	prevStar := false
	for _, r := range segment {
		if r == '*' && prevStar {
			continue
		}
		prevStar = r == '*'
		b.WriteRune(r)
	}
	return b.String()
}

func matchGlob(expression, relativePath string, warnings io.Writer) (bool, error) {
	if strings.HasPrefix(relativePath, "/") {
		return false, trace.BadParameter("path %q must be relative", relativePath)
	}
	matched, err := doublestar.Match(expression, relativePath)
	if err != nil {
		// A single bad rule must not break resolution of unrelated files.
		if warnings != nil {
			_, _ = fmt.Fprintf(warnings, "WARNING: invalid path expression %q: %s\n", expression, err)
		}
		return false, nil
	}
	return matched, nil
}
