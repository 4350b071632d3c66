package owners

import (
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/gravitational/trace"

	f "github.com/ownertree/ownertree/pkg/functional"
)

// AllUsersWildcard is the distinguished owner reference meaning every user
// owns the matched paths.
const AllUsersWildcard OwnerReference = "*"

// MetaConfigBranch is the branch holding the repository-wide default owner
// config, visited after ordinary branch configs when enabled.
const MetaConfigBranch = "refs/meta/config"

// OwnerReference is a raw owner identity, normally an email address. It is
// treated as an opaque key until resolved to an identity.
type OwnerReference string

// ImportMode controls which rule sets transfer across an import.
type ImportMode int

const (
	// ImportAll transfers every rule set of the imported config.
	ImportAll ImportMode = iota
	// ImportGlobalRuleSetsOnly transfers only rule sets without path
	// expressions.
	ImportGlobalRuleSetsOnly
)

func (m ImportMode) String() string {
	switch m {
	case ImportGlobalRuleSetsOnly:
		return "global_rule_sets_only"
	default:
		return "all"
	}
}

// ParseImportMode maps the serialized mode name to an ImportMode. The empty
// string defaults to ImportAll.
func ParseImportMode(s string) (ImportMode, error) {
	switch s {
	case "", "all":
		return ImportAll, nil
	case "global_rule_sets_only":
		return ImportGlobalRuleSetsOnly, nil
	default:
		return ImportAll, trace.BadParameter("unknown import mode %q", s)
	}
}

// OwnerConfigKey identifies one owner config entity within a project.
// Folder is an absolute slash-separated directory with no trailing slash
// (the root is "/"); Branch is always a fully-qualified ref name.
type OwnerConfigKey struct {
	Project  string
	Branch   string
	Folder   string
	FileName string
}

// NewOwnerConfigKey builds a key, validating the branch and folder invariants.
func NewOwnerConfigKey(project, branch, folder string) (OwnerConfigKey, error) {
	if project == "" {
		return OwnerConfigKey{}, trace.BadParameter("project must not be empty")
	}
	if !strings.HasPrefix(branch, "refs/") {
		return OwnerConfigKey{}, trace.BadParameter("branch %q must be a fully-qualified ref", branch)
	}
	if !strings.HasPrefix(folder, "/") {
		return OwnerConfigKey{}, trace.BadParameter("folder %q must be absolute", folder)
	}
	return OwnerConfigKey{
		Project: project,
		Branch:  branch,
		Folder:  NormalizeFolder(folder),
	}, nil
}

// NormalizeFolder cleans a tree directory path to the canonical form used in
// keys: absolute, no trailing slash, root is "/".
func NormalizeFolder(folder string) string {
	cleaned := path.Clean("/" + folder)
	return cleaned
}

// WithFileName returns a copy of the key with an explicit file name.
func (k OwnerConfigKey) WithFileName(name string) OwnerConfigKey {
	k.FileName = name
	return k
}

// FilePath returns the tree path of the config file, using the default name
// of the given convention when the key has no explicit file name.
func (k OwnerConfigKey) FilePath(naming FileNamingConvention) string {
	name := k.FileName
	if name == "" {
		name = naming.DefaultFileName()
	}
	return path.Join(k.Folder, name)
}

func (k OwnerConfigKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Project, k.Branch, path.Join(k.Folder, k.FileName))
}

// ImportDeclaration references another owner config whose rule sets should be
// pulled into the importing config. Path may be absolute or relative to the
// importing folder; a relative path is resolved at resolution time. Branch is
// optional and must be a fully-qualified ref when present.
type ImportDeclaration struct {
	Mode   ImportMode
	Path   string
	Branch string
}

// OwnerRuleSet is a scoped group of owners within a config. An empty
// PathExpressions list makes the rule set global: it matches every path in
// the config's directory and below.
type OwnerRuleSet struct {
	Name                        string
	PathExpressions             []string
	Owners                      []OwnerReference
	IgnoreGlobalAndParentOwners bool
	Imports                     []ImportDeclaration
}

// NewRuleSet builds a global rule set owning the given references.
func NewRuleSet(refs ...OwnerReference) OwnerRuleSet {
	return OwnerRuleSet{Owners: f.RemoveDuplicates(refs)}
}

// NewPathRuleSet builds a rule set scoped to the given path expressions.
func NewPathRuleSet(expressions []string, refs ...OwnerReference) OwnerRuleSet {
	return OwnerRuleSet{PathExpressions: expressions, Owners: f.RemoveDuplicates(refs)}
}

// IsGlobal reports whether the rule set applies to every path in scope.
func (rs OwnerRuleSet) IsGlobal() bool {
	return len(rs.PathExpressions) == 0
}

// Validate checks the rule set invariants.
func (rs OwnerRuleSet) Validate() error {
	if rs.IgnoreGlobalAndParentOwners && rs.IsGlobal() {
		return trace.BadParameter("ignore_global_and_parent_owners is only allowed on rule sets with path expressions")
	}
	return nil
}

// OwnerConfig is the parsed content of one config file at one tree revision.
// Revision is empty only for in-memory configs that were never persisted;
// once set it is immutable, and equality includes it so that two revisions of
// the same file are never conflated.
type OwnerConfig struct {
	Key                OwnerConfigKey
	Revision           string
	IgnoreParentOwners bool
	RuleSets           []OwnerRuleSet
	Imports            []ImportDeclaration
}

// Validate checks the config invariants.
func (c OwnerConfig) Validate() error {
	for _, rs := range c.RuleSets {
		if err := rs.Validate(); err != nil {
			return trace.Wrap(err)
		}
	}
	for _, imp := range append(append([]ImportDeclaration{}, c.Imports...), c.ruleSetImports()...) {
		if imp.Path == "" {
			return trace.BadParameter("import declaration without a path")
		}
		if imp.Branch != "" && !strings.HasPrefix(imp.Branch, "refs/") {
			return trace.BadParameter("import branch %q must be a fully-qualified ref", imp.Branch)
		}
	}
	return nil
}

func (c OwnerConfig) ruleSetImports() []ImportDeclaration {
	decls := make([]ImportDeclaration, 0)
	for _, rs := range c.RuleSets {
		decls = append(decls, rs.Imports...)
	}
	return decls
}

// IsEmpty reports whether the config carries no declarations at all. An empty
// config formats to empty content and is deleted on upsert.
func (c OwnerConfig) IsEmpty() bool {
	return !c.IgnoreParentOwners && len(c.RuleSets) == 0 && len(c.Imports) == 0
}

// Equal compares two configs structurally, including the revision.
func (c OwnerConfig) Equal(other OwnerConfig) bool {
	return reflect.DeepEqual(c, other)
}

// SameContent compares the declared content of two configs, ignoring the key
// and the revision they were loaded from. Used by upsert to detect no-op
// modifications.
func (c OwnerConfig) SameContent(other OwnerConfig) bool {
	c.Key, other.Key = OwnerConfigKey{}, OwnerConfigKey{}
	c.Revision, other.Revision = "", ""
	return reflect.DeepEqual(c, other)
}

// ResolvedImport records the outcome of one import resolution attempt.
// Reason is empty for a resolved link and carries a human-readable
// explanation for an unresolved one.
type ResolvedImport struct {
	ImportingConfig OwnerConfigKey
	ImportedConfig  OwnerConfigKey
	Declaration     ImportDeclaration
	Reason          string
}

// Resolved reports whether the import was successfully resolved.
func (ri ResolvedImport) Resolved() bool {
	return ri.Reason == ""
}

// PathOwnersResult is the outcome of evaluating one config of the hierarchy
// against one file path. Built fresh per (path, config) pair and never
// mutated after construction.
type PathOwnersResult struct {
	Path               string
	Key                OwnerConfigKey
	IgnoreParentOwners bool
	RuleSets           []OwnerRuleSet
	ResolvedImports    []ResolvedImport
	UnresolvedImports  []ResolvedImport
}
