package owners

import (
	"path"
	"strings"

	"github.com/gravitational/trace"

	f "github.com/ownertree/ownertree/pkg/functional"
)

const (
	reasonNotFound      = "not found"
	reasonCycleDetected = "import cycle detected"
)

// ImportResolver expands import declarations into the rule sets they
// contribute, transitively and cycle-safe. Unresolvable imports are recorded
// with a reason instead of failing the expansion.
type ImportResolver struct {
	store *ConfigStore
}

func NewImportResolver(store *ConfigStore) *ImportResolver {
	return &ImportResolver{store: store}
}

// Expansion is the outcome of expanding a set of import declarations: the
// contributed rule sets in declaration order, plus the transitive ledger of
// resolved and unresolved imports.
type Expansion struct {
	RuleSets   []OwnerRuleSet
	Resolved   []ResolvedImport
	Unresolved []ResolvedImport
}

type importStackKey struct {
	branch   string
	filePath string
}

// expandState is threaded through the whole recursive expansion: the cycle
// guard tracks every (branch, path) pair on the current call stack, and
// branch tips are pinned on first use so one expansion sees one snapshot per
// branch.
type expandState struct {
	revisions  map[string]string
	stack      f.Set[importStackKey]
	resolved   []ResolvedImport
	unresolved []ResolvedImport
	tracef     func(format string, args ...interface{})
}

func (st *expandState) trace(format string, args ...interface{}) {
	if st.tracef != nil {
		st.tracef(format, args...)
	}
}

// Expand resolves decls against the importing config. The inherited mode
// narrows every nested import: once an expansion passes a global-only
// boundary, nothing below it may contribute path-scoped rule sets.
func (r *ImportResolver) Expand(importing OwnerConfig, decls []ImportDeclaration, inherited ImportMode, tracef func(string, ...interface{})) Expansion {
	st := &expandState{
		revisions: make(map[string]string),
		stack:     f.NewSet[importStackKey](),
		tracef:    tracef,
	}
	if importing.Revision != "" {
		st.revisions[importing.Key.Branch] = importing.Revision
	}
	st.stack.Add(importStackKey{
		branch:   importing.Key.Branch,
		filePath: importing.Key.FilePath(r.store.Naming()),
	})

	ruleSets := make([]OwnerRuleSet, 0)
	for _, decl := range decls {
		ruleSets = append(ruleSets, r.expand(st, importing, decl, inherited)...)
	}
	return Expansion{RuleSets: ruleSets, Resolved: st.resolved, Unresolved: st.unresolved}
}

// Resolve reports the outcome of a single import declaration without
// transitive expansion. Used by diagnostic surfaces.
func (r *ImportResolver) Resolve(importing OwnerConfig, decl ImportDeclaration) ResolvedImport {
	target := r.targetKey(importing, decl)
	link := ResolvedImport{
		ImportingConfig: importing.Key,
		ImportedConfig:  target,
		Declaration:     decl,
	}
	config, err := r.load(&expandState{revisions: map[string]string{}}, target)
	switch {
	case err != nil:
		link.Reason = importFailureReason(err)
	case config == nil:
		link.Reason = reasonNotFound
	}
	return link
}

func (r *ImportResolver) expand(st *expandState, importing OwnerConfig, decl ImportDeclaration, inherited ImportMode) []OwnerRuleSet {
	target := r.targetKey(importing, decl)
	mode := decl.Mode
	if inherited == ImportGlobalRuleSetsOnly {
		mode = ImportGlobalRuleSetsOnly
	}
	link := ResolvedImport{
		ImportingConfig: importing.Key,
		ImportedConfig:  target,
		Declaration:     decl,
	}

	stackKey := importStackKey{branch: target.Branch, filePath: target.FilePath(r.store.Naming())}
	if st.stack.Contains(stackKey) {
		st.trace("import %s -> %s: cycle", importing.Key, target)
		link.Reason = reasonCycleDetected
		st.unresolved = append(st.unresolved, link)
		return nil
	}

	config, err := r.load(st, target)
	if err != nil {
		link.Reason = importFailureReason(err)
		st.unresolved = append(st.unresolved, link)
		return nil
	}
	if config == nil {
		st.trace("import %s -> %s: not found", importing.Key, target)
		link.Reason = reasonNotFound
		st.unresolved = append(st.unresolved, link)
		return nil
	}
	st.trace("import %s -> %s resolved (mode %s)", importing.Key, target, mode)
	st.resolved = append(st.resolved, link)

	contributed := config.RuleSets
	if mode == ImportGlobalRuleSetsOnly {
		contributed = f.Filtered(contributed, OwnerRuleSet.IsGlobal)
	}

	st.stack.Add(stackKey)
	defer st.stack.Remove(stackKey)

	ruleSets := make([]OwnerRuleSet, 0, len(contributed))
	for _, rs := range contributed {
		// The contributed copy is returned without its imports: they are
		// expanded right here, and callers must not expand them again.
		flat := rs
		flat.Imports = nil
		ruleSets = append(ruleSets, flat)
		// Rule-set-scoped imports of the imported config contribute owners
		// only to the paths that rule set matches, and a path-scoped rule
		// set may only pull in global rule sets.
		nestedMode := mode
		if !rs.IsGlobal() {
			nestedMode = ImportGlobalRuleSetsOnly
		}
		for _, nestedDecl := range rs.Imports {
			for _, nested := range r.expand(st, *config, nestedDecl, nestedMode) {
				ruleSets = append(ruleSets, rescope(nested, rs))
			}
		}
	}
	// Top-level imports of the imported config expand at the same tier as
	// the import site.
	for _, nestedDecl := range config.Imports {
		ruleSets = append(ruleSets, r.expand(st, *config, nestedDecl, mode)...)
	}
	return ruleSets
}

// rescope narrows a rule set contributed through a path-scoped rule set's
// import to that rule set's path expressions.
func rescope(contributed, via OwnerRuleSet) OwnerRuleSet {
	if via.IsGlobal() {
		return contributed
	}
	return OwnerRuleSet{
		Name:                        contributed.Name,
		PathExpressions:             via.PathExpressions,
		Owners:                      contributed.Owners,
		IgnoreGlobalAndParentOwners: via.IgnoreGlobalAndParentOwners,
	}
}

func (r *ImportResolver) targetKey(importing OwnerConfig, decl ImportDeclaration) OwnerConfigKey {
	branch := decl.Branch
	if branch == "" {
		branch = importing.Key.Branch
	}
	filePath := decl.Path
	if !strings.HasPrefix(filePath, "/") {
		// Relative paths resolve against the importing directory at
		// resolution time.
		filePath = path.Join(importing.Key.Folder, filePath)
	}
	filePath = path.Clean(filePath)
	return OwnerConfigKey{
		Project:  importing.Key.Project,
		Branch:   branch,
		Folder:   NormalizeFolder(path.Dir(filePath)),
		FileName: path.Base(filePath),
	}
}

// load fetches the target config at the snapshot pinned for its branch,
// resolving and pinning the branch tip on first use.
func (r *ImportResolver) load(st *expandState, key OwnerConfigKey) (*OwnerConfig, error) {
	revision, ok := st.revisions[key.Branch]
	if !ok {
		rev, err := r.store.HeadRevision(key.Branch)
		if err != nil {
			if trace.IsNotFound(err) {
				return nil, nil
			}
			return nil, trace.Wrap(err)
		}
		revision = rev
		st.revisions[key.Branch] = revision
	}
	return r.store.Load(key, revision)
}

func importFailureReason(err error) string {
	if ice, ok := AsInvalidConfig(err); ok {
		return ice.Error()
	}
	return err.Error()
}
