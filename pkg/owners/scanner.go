package owners

import (
	"path"
	"sort"

	"github.com/gravitational/trace"

	f "github.com/ownertree/ownertree/pkg/functional"
)

// ConfigVisitor receives one parsed config; returning false stops the
// enclosing scan or walk early.
type ConfigVisitor func(config OwnerConfig) bool

// InvalidConfigCallback is invoked for config files that exist but fail to
// parse. The scan or walk continues afterwards.
type InvalidConfigCallback func(path string, err error)

// DefaultConfigOption controls whether the repository-wide default config in
// the meta config branch is included in a scan.
type DefaultConfigOption int

const (
	ExcludeDefaultConfig DefaultConfigOption = iota
	IncludeDefaultConfig
)

// ConfigScanner enumerates every owner config file in a branch's current
// tree snapshot, in deterministic lexical order.
type ConfigScanner struct {
	reader RepoReader
	parser Parser
	naming FileNamingConvention
}

func NewConfigScanner(reader RepoReader, parser Parser, naming FileNamingConvention) *ConfigScanner {
	return &ConfigScanner{reader: reader, parser: parser, naming: naming}
}

// Scan visits every config file of the branch tip. Parse failures go to
// onInvalid and never abort the scan. With IncludeDefaultConfig, the default
// config of the meta config branch is visited after the branch's own configs
// (unless the scanned branch is the meta config branch itself, where it is
// part of the normal tree order).
func (s *ConfigScanner) Scan(project, branch string, visitor ConfigVisitor, onInvalid InvalidConfigCallback, defaults DefaultConfigOption) error {
	if visitor == nil {
		return trace.BadParameter("visitor must not be nil")
	}
	revision, err := s.reader.HeadOf(branch)
	if err != nil {
		return trace.Wrap(err)
	}
	entries, err := s.reader.ListTree(revision)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, entry := range entries {
		if !s.naming.Matches(path.Base(entry)) {
			continue
		}
		stop, err := s.visitFile(project, branch, revision, entry, visitor, onInvalid)
		if err != nil {
			return trace.Wrap(err)
		}
		if stop {
			return nil
		}
	}
	if defaults == IncludeDefaultConfig && branch != MetaConfigBranch {
		if err := s.scanDefaultConfig(project, visitor, onInvalid); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

func (s *ConfigScanner) visitFile(project, branch, revision, entry string, visitor ConfigVisitor, onInvalid InvalidConfigCallback) (bool, error) {
	folder := path.Dir(entry)
	if folder == "." {
		folder = ""
	}
	key, err := NewOwnerConfigKey(project, branch, "/"+folder)
	if err != nil {
		return false, trace.Wrap(err)
	}
	key = key.WithFileName(path.Base(entry))

	text, err := s.reader.ReadBlob(revision, entry)
	if err != nil {
		return false, trace.Wrap(err)
	}
	config, err := s.parser.Parse(key, text)
	if err != nil {
		if onInvalid != nil {
			onInvalid("/"+entry, err)
		}
		return false, nil
	}
	config.Revision = revision
	return !visitor(config), nil
}

func (s *ConfigScanner) scanDefaultConfig(project string, visitor ConfigVisitor, onInvalid InvalidConfigCallback) error {
	revision, err := s.reader.HeadOf(MetaConfigBranch)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil
		}
		return trace.Wrap(err)
	}
	entries, err := s.reader.ListTree(revision)
	if err != nil {
		return trace.Wrap(err)
	}
	// The default config carries naming decorations like any other config,
	// so the meta branch root is matched against the convention the same way
	// folder lookups are, preferring the canonical name.
	candidates := f.Filtered(entries, func(entry string) bool {
		return path.Dir(entry) == "." && s.naming.Matches(entry)
	})
	if len(candidates) == 0 {
		return nil
	}
	sort.Strings(candidates)
	name := candidates[0]
	for _, c := range candidates {
		if c == s.naming.DefaultFileName() {
			name = c
			break
		}
	}
	text, err := s.reader.ReadBlob(revision, name)
	if err != nil {
		return trace.Wrap(err)
	}
	key, err := NewOwnerConfigKey(project, MetaConfigBranch, "/")
	if err != nil {
		return trace.Wrap(err)
	}
	config, err := s.parser.Parse(key.WithFileName(name), text)
	if err != nil {
		if onInvalid != nil {
			onInvalid("/"+name, err)
		}
		return nil
	}
	config.Revision = revision
	visitor(config)
	return nil
}
