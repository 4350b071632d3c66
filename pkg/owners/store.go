package owners

import (
	"path"
	"sort"
	"strings"

	"github.com/gravitational/trace"
	lru "github.com/hashicorp/golang-lru/v2"

	f "github.com/ownertree/ownertree/pkg/functional"
)

// Parser is the pluggable text format of owner config files. Format must
// round-trip: Parse(Format(c)) is structurally equal to c for any valid c,
// and a config with nothing to declare formats to empty content.
type Parser interface {
	Parse(key OwnerConfigKey, text []byte) (OwnerConfig, error)
	Format(config OwnerConfig) ([]byte, error)
}

// ConfigUpdate describes an upsert modification. Nil/zero fields leave the
// corresponding part of the config untouched.
type ConfigUpdate struct {
	RuleSets           *[]OwnerRuleSet
	AppendRuleSets     []OwnerRuleSet
	ClearRuleSets      bool
	Imports            *[]ImportDeclaration
	IgnoreParentOwners *bool
}

const configCacheSize = 512

// ConfigStore loads and stores owner configs over a RepoReader/RepoWriter
// pair and a Parser. Configs at a fixed revision are immutable, so loads are
// memoized in an LRU cache keyed by (key, revision).
type ConfigStore struct {
	reader RepoReader
	writer RepoWriter
	parser Parser
	naming FileNamingConvention
	cache  *lru.Cache[configCacheKey, OwnerConfig]
}

type configCacheKey struct {
	key      OwnerConfigKey
	revision string
}

// NewConfigStore builds a store. The writer may be nil for read-only use.
func NewConfigStore(reader RepoReader, writer RepoWriter, parser Parser, naming FileNamingConvention) *ConfigStore {
	cache, err := lru.New[configCacheKey, OwnerConfig](configCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &ConfigStore{
		reader: reader,
		writer: writer,
		parser: parser,
		naming: naming,
		cache:  cache,
	}
}

// Naming returns the file naming convention the store was built with.
func (s *ConfigStore) Naming() FileNamingConvention {
	return s.naming
}

// HeadRevision resolves the branch tip, returning a not-found error when the
// branch does not exist.
func (s *ConfigStore) HeadRevision(branch string) (string, error) {
	rev, err := s.reader.HeadOf(branch)
	if err != nil {
		return "", trace.Wrap(err)
	}
	return rev, nil
}

// Load returns the config for the key at the given revision, or at the
// branch tip when revision is empty. A missing branch, a directory without a
// config file, or a file name not matching the naming convention all return
// (nil, nil). An explicit revision that does not exist is a fatal storage
// error. A present but unparseable file returns an InvalidConfigError.
func (s *ConfigStore) Load(key OwnerConfigKey, revision string) (*OwnerConfig, error) {
	if key.Folder == "" {
		return nil, trace.BadParameter("config key has no folder")
	}
	if revision == "" {
		rev, err := s.reader.HeadOf(key.Branch)
		if err != nil {
			if trace.IsNotFound(err) {
				return nil, nil
			}
			return nil, trace.Wrap(err)
		}
		revision = rev
	} else if !s.reader.RevisionExists(revision) {
		return nil, trace.NotFound("revision %q does not exist", revision)
	}

	if cached, ok := s.cache.Get(configCacheKey{key: key, revision: revision}); ok {
		return &cached, nil
	}

	filePath, ok, err := s.findConfigFile(key, revision)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !ok {
		return nil, nil
	}

	text, err := s.reader.ReadBlob(revision, filePath)
	if err != nil {
		if trace.IsNotFound(err) {
			return nil, nil
		}
		return nil, trace.Wrap(err)
	}

	config, err := s.parser.Parse(key.WithFileName(path.Base(filePath)), text)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	config.Revision = revision
	s.cache.Add(configCacheKey{key: key, revision: revision}, config)
	return &config, nil
}

// findConfigFile locates the config file for the key within its folder. An
// explicit file name is honored only if it matches the naming convention.
// Without one, the folder's entries are matched against the convention and
// the lexically first candidate wins, preferring the canonical name.
func (s *ConfigStore) findConfigFile(key OwnerConfigKey, revision string) (string, bool, error) {
	if key.FileName != "" {
		if !s.naming.Matches(key.FileName) {
			return "", false, nil
		}
		return path.Join(key.Folder, key.FileName), true, nil
	}
	entries, err := s.reader.ListTree(revision)
	if err != nil {
		return "", false, trace.Wrap(err)
	}
	folder := strings.TrimPrefix(key.Folder, "/")
	candidates := f.Filtered(entries, func(entry string) bool {
		dir := path.Dir(entry)
		if dir == "." {
			dir = ""
		}
		return dir == folder && s.naming.Matches(path.Base(entry))
	})
	if len(candidates) == 0 {
		return "", false, nil
	}
	canonical := path.Join(folder, s.naming.DefaultFileName())
	for _, c := range candidates {
		if c == canonical {
			return "/" + c, true, nil
		}
	}
	sort.Strings(candidates)
	return "/" + candidates[0], true, nil
}

// Upsert loads the current config, applies the update, and commits the
// result when it differs from the current state. A config with nothing left
// to declare is deleted. A no-op update commits nothing and returns the
// current state unchanged. The target branch must already exist.
func (s *ConfigStore) Upsert(key OwnerConfigKey, update ConfigUpdate, acting PersonIdent) (*OwnerConfig, error) {
	if s.writer == nil {
		return nil, trace.BadParameter("config store is read-only")
	}
	parent, err := s.reader.HeadOf(key.Branch)
	if err != nil {
		// Upsert never creates branches.
		return nil, trace.Wrap(err)
	}

	current, err := s.Load(key, parent)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	updated := applyUpdate(current, key, update)
	if err := updated.Validate(); err != nil {
		return nil, trace.Wrap(err)
	}

	if current == nil && updated.IsEmpty() {
		return nil, nil
	}
	if current != nil && current.SameContent(updated) {
		return current, nil
	}

	filePath := key.FilePath(s.naming)
	if current != nil {
		filePath = current.Key.FilePath(s.naming)
	}

	var change TreeChange
	var message string
	switch {
	case updated.IsEmpty():
		change = TreeChange{Path: filePath}
		message = "Delete owner config"
	case current == nil:
		text, err := s.parser.Format(updated)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		change = TreeChange{Path: filePath, Content: text}
		message = "Create owner config"
	default:
		text, err := s.parser.Format(updated)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		change = TreeChange{Path: filePath, Content: text}
		message = "Update owner config"
	}

	rev, err := s.writer.Commit(key.Branch, parent, []TreeChange{change}, acting, acting, message)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if updated.IsEmpty() {
		return nil, nil
	}
	updated.Revision = rev
	s.cache.Add(configCacheKey{key: key, revision: rev}, updated)
	return &updated, nil
}

func applyUpdate(current *OwnerConfig, key OwnerConfigKey, update ConfigUpdate) OwnerConfig {
	updated := OwnerConfig{Key: key}
	if current != nil {
		updated = *current
		updated.Key = key
		updated.Revision = ""
	}
	if update.ClearRuleSets {
		updated.RuleSets = nil
	}
	if update.RuleSets != nil {
		updated.RuleSets = *update.RuleSets
	}
	if len(update.AppendRuleSets) > 0 {
		updated.RuleSets = append(append([]OwnerRuleSet{}, updated.RuleSets...), update.AppendRuleSets...)
	}
	if update.Imports != nil {
		updated.Imports = *update.Imports
	}
	if update.IgnoreParentOwners != nil {
		updated.IgnoreParentOwners = *update.IgnoreParentOwners
	}
	return updated
}
