package owners

import (
	"bytes"
	"strings"
	"testing"
)

func TestStrictMatcher(t *testing.T) {
	tt := []struct {
		expression string
		path       string
		expected   bool
	}{
		{"*.md", "README.md", true},
		{"*.md", "foo/README.md", false},
		{"**.md", "README.md", true},
		{"**.md", "foo/README.md", true},
		{"docs/**.md", "docs/a/b/notes.md", true},
		{"docs/**.md", "src/notes.md", false},
		{"foo/**", "foo/a/b/README.md", true},
		{"foo/**", "bar/README.md", false},
		{"foo/*", "foo/a.go", true},
		{"foo/*", "foo/a/b.go", false},
		{"*.{md,txt}", "notes.txt", true},
		{"*.{md,txt}", "notes.rst", false},
		{"[ab].go", "a.go", true},
		{"[ab].go", "c.go", false},
		{"{unterminated", "anything", false},
		{"[unterminated", "anything", false},
	}

	matcher := StrictMatcher{}
	for _, tc := range tt {
		t.Run(tc.expression+"_"+tc.path, func(t *testing.T) {
			matched, err := matcher.Matches(tc.expression, tc.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if matched != tc.expected {
				t.Errorf("Matches(%q, %q) = %v, want %v", tc.expression, tc.path, matched, tc.expected)
			}
		})
	}
}

func TestStrictMatcherRejectsAbsolutePath(t *testing.T) {
	matcher := StrictMatcher{}
	if _, err := matcher.Matches("*.md", "/README.md"); err == nil {
		t.Error("expected error for absolute path")
	}
}

func TestStrictMatcherWarnsOnMalformedExpression(t *testing.T) {
	warnings := bytes.NewBuffer(nil)
	matcher := StrictMatcher{Warnings: warnings}
	matched, err := matcher.Matches("{unterminated", "a.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matched {
		t.Error("malformed expression should not match")
	}
	if !strings.Contains(warnings.String(), "invalid path expression") {
		t.Errorf("expected warning, got %q", warnings.String())
	}
}

func TestFindOwnersMatcher(t *testing.T) {
	tt := []struct {
		expression string
		path       string
		expected   bool
	}{
		// A lone * crosses segment boundaries in this dialect.
		{"*.md", "foo/README.md", true},
		{"*.md", "README.md", true},
		{"**.md", "foo/README.md", true},
		{"foo/*", "foo/a/b.go", true},
		{"*.go", "a/b/c.go", true},
		{"*.go", "a/b/c.md", false},
	}

	matcher := FindOwnersMatcher{}
	for _, tc := range tt {
		t.Run(tc.expression+"_"+tc.path, func(t *testing.T) {
			matched, err := matcher.Matches(tc.expression, tc.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if matched != tc.expected {
				t.Errorf("Matches(%q, %q) = %v, want %v", tc.expression, tc.path, matched, tc.expected)
			}
		})
	}
}

func TestRewriteLoneStars(t *testing.T) {
	tt := []struct {
		in       string
		expected string
	}{
		{"*", "**"},
		{"*.md", "**/*.md"},
		{"**", "**"},
		{"***", "**"},
		{"foo/*", "foo/**"},
		{"foo/*/bar", "foo/**/bar"},
		{"foo/**/bar", "foo/**/bar"},
		{"a*b", "**/a*b"},
		{"no-stars", "no-stars"},
	}

	for _, tc := range tt {
		if got := rewriteLoneStars(tc.in); got != tc.expected {
			t.Errorf("rewriteLoneStars(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}

func TestRewriteGluedDoubleStars(t *testing.T) {
	tt := []struct {
		in       string
		expected string
	}{
		{"**.md", "**/*.md"},
		{"docs/**.md", "docs/**/*.md"},
		{"*.md", "*.md"},
		{"foo/*", "foo/*"},
		{"foo/**", "foo/**"},
		{"**", "**"},
		{"no-stars", "no-stars"},
	}

	for _, tc := range tt {
		if got := rewriteGluedDoubleStars(tc.in); got != tc.expected {
			t.Errorf("rewriteGluedDoubleStars(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}
