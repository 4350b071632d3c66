package owners

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gravitational/trace"

	f "github.com/ownertree/ownertree/pkg/functional"
)

// OwnerResolverResult is the final aggregate of resolving the owners of one
// file path. When OwnedByAllUsers is set the identity list may be incomplete
// and HasUnresolvedOwners is not required to be accurate - callers must
// check the flag first.
type OwnerResolverResult struct {
	Path                string
	Owners              []Identity
	References          []OwnerReference
	OwnedByAllUsers     bool
	HasUnresolvedOwners bool
	Distances           map[OwnerReference]int
	MaxDistance         int
	PathResults         []PathOwnersResult
	ResolvedImports     []ResolvedImport
	UnresolvedImports   []ResolvedImport
	TraceMessages       []string
}

// OwnerResolver computes the effective owners of a file path by walking the
// config hierarchy, matching rule sets, expanding imports and resolving raw
// references to identities.
type OwnerResolver struct {
	store      *ConfigStore
	walker     *ConfigHierarchyWalker
	imports    *ImportResolver
	matcher    PathMatcher
	identities IdentityResolver
	warnings   io.Writer
}

// NewOwnerResolver wires a resolver for one project. The warning writer
// receives non-fatal diagnostics (invalid configs, unresolved owners).
func NewOwnerResolver(store *ConfigStore, project string, matcher PathMatcher, identities IdentityResolver, warnings io.Writer) *OwnerResolver {
	if warnings == nil {
		warnings = io.Discard
	}
	return &OwnerResolver{
		store:      store,
		walker:     NewConfigHierarchyWalker(store, project),
		imports:    NewImportResolver(store),
		matcher:    matcher,
		identities: identities,
		warnings:   warnings,
	}
}

// WithDefaultConfig makes resolution continue into the meta config branch
// after the tree root.
func (r *OwnerResolver) WithDefaultConfig() *OwnerResolver {
	r.walker.WithDefaultConfig()
	return r
}

// Resolve computes the owners of filePath at the given revision (branch tip
// when empty).
func (r *OwnerResolver) Resolve(branch, revision, filePath string) (*OwnerResolverResult, error) {
	return r.resolve(branch, revision, filePath, false)
}

// ResolveTraced is Resolve with debug trace messages collected on the
// result.
func (r *OwnerResolver) ResolveTraced(branch, revision, filePath string) (*OwnerResolverResult, error) {
	return r.resolve(branch, revision, filePath, true)
}

func (r *OwnerResolver) resolve(branch, revision, filePath string, traced bool) (*OwnerResolverResult, error) {
	if !strings.HasPrefix(filePath, "/") {
		return nil, trace.BadParameter("file path %q must be absolute", filePath)
	}
	filePath = "/" + strings.TrimPrefix(filePath, "/")

	result := &OwnerResolverResult{
		Path:        filePath,
		Distances:   make(map[OwnerReference]int),
		MaxDistance: len(AncestorFolders(filePath)),
	}
	tracef := func(format string, args ...interface{}) {
		if traced {
			result.TraceMessages = append(result.TraceMessages, fmt.Sprintf(format, args...))
		}
	}

	refs := make([]OwnerReference, 0)
	visitor := func(config OwnerConfig) bool {
		contributions, pathResult := r.evaluateConfig(config, filePath, tracef)
		result.PathResults = append(result.PathResults, pathResult)
		result.ResolvedImports = append(result.ResolvedImports, pathResult.ResolvedImports...)
		result.UnresolvedImports = append(result.UnresolvedImports, pathResult.UnresolvedImports...)

		distance := configDistance(filePath, config.Key, result.MaxDistance)
		for _, ref := range contributions {
			refs = append(refs, ref)
			if prev, ok := result.Distances[ref]; !ok || distance < prev {
				result.Distances[ref] = distance
			}
			if ref == AllUsersWildcard {
				result.OwnedByAllUsers = true
			}
		}
		if result.OwnedByAllUsers {
			tracef("all-users wildcard at %s, stopping", config.Key)
			return false
		}
		if pathResult.IgnoreParentOwners {
			tracef("parent owners ignored at %s", config.Key)
			return false
		}
		return true
	}
	onInvalid := func(configPath string, err error) {
		tracef("invalid config %s: %v", configPath, err)
		fmt.Fprintf(r.warnings, "WARNING: skipping invalid owner config %s: %v\n", configPath, err)
		result.UnresolvedImports = append(result.UnresolvedImports, ResolvedImport{
			ImportedConfig: OwnerConfigKey{
				Branch:   branch,
				Folder:   NormalizeFolder(path.Dir(configPath)),
				FileName: path.Base(configPath),
			},
			Reason: importFailureReason(err),
		})
	}

	if err := r.walker.Visit(branch, revision, filePath, visitor, onInvalid); err != nil {
		return nil, trace.Wrap(err)
	}

	result.References = f.RemoveDuplicates(refs)
	if result.OwnedByAllUsers {
		return result, nil
	}
	for _, ref := range result.References {
		identity, ok := r.identities.ResolveEmail(string(ref))
		if !ok {
			result.HasUnresolvedOwners = true
			tracef("owner %s could not be resolved", ref)
			fmt.Fprintf(r.warnings, "WARNING: owner %s could not be resolved to an account\n", ref)
			continue
		}
		result.Owners = append(result.Owners, identity)
	}
	return result, nil
}

// evaluateConfig determines the owner references one config contributes to
// filePath: the owners of its matching rule sets plus everything pulled in
// through imports at this directory's tier.
func (r *OwnerResolver) evaluateConfig(config OwnerConfig, filePath string, tracef func(string, ...interface{})) ([]OwnerReference, PathOwnersResult) {
	rel := relativize(filePath, config.Key.Folder)
	tracef("visiting %s (relative path %s)", config.Key, rel)

	pathResult := PathOwnersResult{
		Path:               filePath,
		Key:                config.Key,
		IgnoreParentOwners: config.IgnoreParentOwners,
	}

	candidates := append([]OwnerRuleSet{}, config.RuleSets...)
	if len(config.Imports) > 0 {
		expansion := r.imports.Expand(config, config.Imports, ImportAll, tracef)
		candidates = append(candidates, expansion.RuleSets...)
		pathResult.ResolvedImports = append(pathResult.ResolvedImports, expansion.Resolved...)
		pathResult.UnresolvedImports = append(pathResult.UnresolvedImports, expansion.Unresolved...)
	}

	var matchedGlobal, matchedScoped []OwnerRuleSet
	for _, rs := range candidates {
		if rs.IsGlobal() {
			matchedGlobal = append(matchedGlobal, rs)
			continue
		}
		if r.anyExpressionMatches(rs.PathExpressions, rel) {
			matchedScoped = append(matchedScoped, rs)
		}
	}

	// A matching path-scoped stop wins over an unscoped continue at the
	// same directory: it drops the global rule sets here and stops the
	// upward walk for this path.
	scopedStop := false
	for _, rs := range matchedScoped {
		if rs.IgnoreGlobalAndParentOwners {
			scopedStop = true
			break
		}
	}
	matched := append(append([]OwnerRuleSet{}, matchedGlobal...), matchedScoped...)
	if scopedStop {
		matched = matchedScoped
		pathResult.IgnoreParentOwners = true
	}
	pathResult.RuleSets = matched

	refs := make([]OwnerReference, 0)
	for _, rs := range matched {
		refs = append(refs, rs.Owners...)
		if len(rs.Imports) == 0 {
			continue
		}
		// A path-scoped rule set may only import the global rule sets of
		// its target.
		mode := ImportAll
		if !rs.IsGlobal() {
			mode = ImportGlobalRuleSetsOnly
		}
		expansion := r.imports.Expand(config, rs.Imports, mode, tracef)
		for _, imported := range expansion.RuleSets {
			refs = append(refs, imported.Owners...)
		}
		pathResult.ResolvedImports = append(pathResult.ResolvedImports, expansion.Resolved...)
		pathResult.UnresolvedImports = append(pathResult.UnresolvedImports, expansion.Unresolved...)
	}
	return refs, pathResult
}

func (r *OwnerResolver) anyExpressionMatches(expressions []string, rel string) bool {
	for _, expr := range expressions {
		matched, err := r.matcher.Matches(expr, rel)
		if err != nil {
			fmt.Fprintf(r.warnings, "WARNING: %v\n", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// configDistance is the number of directory levels between the file and the
// config's folder. The default config of the meta config branch sits one
// level beyond the tree root.
func configDistance(filePath string, key OwnerConfigKey, maxDistance int) int {
	if key.Branch == MetaConfigBranch {
		return maxDistance
	}
	return folderDepth(path.Dir(filePath)) - folderDepth(key.Folder)
}

func folderDepth(folder string) int {
	if folder == "/" {
		return 0
	}
	return strings.Count(folder, "/")
}

// relativize strips the config folder prefix from the absolute file path.
func relativize(filePath, folder string) string {
	if folder == "/" {
		return strings.TrimPrefix(filePath, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(filePath, folder), "/")
}
