package owners

import (
	"reflect"
	"strings"
	"testing"
)

func mustLoad(t *testing.T, store *ConfigStore, key OwnerConfigKey) OwnerConfig {
	t.Helper()
	config, err := store.Load(key, "")
	if err != nil {
		t.Fatalf("load %s: %v", key, err)
	}
	if config == nil {
		t.Fatalf("no config at %s", key)
	}
	return *config
}

func ownerRefs(ruleSets []OwnerRuleSet) []OwnerReference {
	refs := make([]OwnerReference, 0)
	for _, rs := range ruleSets {
		refs = append(refs, rs.Owners...)
	}
	return refs
}

func TestImportExpandContributesRuleSets(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml"}},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{
				NewRuleSet("global@example.com"),
				NewPathRuleSet([]string{"*.md"}, "docs@example.com"),
			},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"global@example.com", "docs@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
	if len(expansion.Resolved) != 1 || len(expansion.Unresolved) != 0 {
		t.Errorf("ledger resolved=%d unresolved=%d, want 1/0", len(expansion.Resolved), len(expansion.Unresolved))
	}
	for _, rs := range expansion.RuleSets {
		if len(rs.Imports) != 0 {
			t.Errorf("contributed rule set still carries imports: %v", rs.Imports)
		}
	}
}

func TestImportExpandRelativePath(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "sub/OWNERS.toml"}},
		}),
		"/foo/sub/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("sub@example.com")},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"sub@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
	if len(expansion.Resolved) != 1 {
		t.Fatalf("resolved = %d, want 1", len(expansion.Resolved))
	}
	if got := expansion.Resolved[0].ImportedConfig.Folder; got != "/foo/sub" {
		t.Errorf("imported folder = %q, want /foo/sub", got)
	}
}

func TestImportExpandGlobalOnlyMode(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml", Mode: ImportGlobalRuleSetsOnly}},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{
				NewRuleSet("global@example.com"),
				NewPathRuleSet([]string{"*.md"}, "docs@example.com"),
			},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"global@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
}

func TestImportExpandGlobalOnlyModeIsSticky(t *testing.T) {
	// foo imports bar global-only; bar imports baz in all mode. The
	// global-only boundary narrows everything below it.
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml", Mode: ImportGlobalRuleSetsOnly}},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("bar@example.com")},
			Imports:  []ImportDeclaration{{Path: "/baz/OWNERS.toml"}},
		}),
		"/baz/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{
				NewRuleSet("baz-global@example.com"),
				NewPathRuleSet([]string{"*.go"}, "baz-scoped@example.com"),
			},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"bar@example.com", "baz-global@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
}

func TestImportExpandCycleIsSafe(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/a/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("a@example.com")},
			Imports:  []ImportDeclaration{{Path: "/b/OWNERS.toml"}},
		}),
		"/b/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("b@example.com")},
			Imports:  []ImportDeclaration{{Path: "/a/OWNERS.toml"}},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/a"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"b@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
	if len(expansion.Unresolved) != 1 {
		t.Fatalf("unresolved = %d, want 1", len(expansion.Unresolved))
	}
	if expansion.Unresolved[0].Reason != "import cycle detected" {
		t.Errorf("reason = %q, want cycle", expansion.Unresolved[0].Reason)
	}
}

func TestImportExpandSelfImport(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/a/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("a@example.com")},
			Imports:  []ImportDeclaration{{Path: "/a/OWNERS.toml"}},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/a"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	if len(expansion.RuleSets) != 0 {
		t.Errorf("self-import contributed %v", expansion.RuleSets)
	}
	if len(expansion.Unresolved) != 1 || expansion.Unresolved[0].Reason != "import cycle detected" {
		t.Errorf("unresolved = %v, want one cycle entry", expansion.Unresolved)
	}
}

func TestImportExpandDiamondIsNotACycle(t *testing.T) {
	// a imports b and c; both import d. d contributes through both arms
	// because the guard tracks the call stack, not visited nodes.
	store, _ := newTestStore(t, map[string][]byte{
		"/a/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{
				{Path: "/b/OWNERS.toml"},
				{Path: "/c/OWNERS.toml"},
			},
		}),
		"/b/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/d/OWNERS.toml"}},
		}),
		"/c/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/d/OWNERS.toml"}},
		}),
		"/d/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("d@example.com")},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/a"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"d@example.com", "d@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
	if len(expansion.Unresolved) != 0 {
		t.Errorf("unresolved = %v, want none", expansion.Unresolved)
	}
}

func TestImportExpandNotFound(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{
				{Path: "/missing/OWNERS.toml"},
				{Path: "/bar/OWNERS.toml", Branch: "refs/heads/missing"},
			},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	if len(expansion.RuleSets) != 0 {
		t.Errorf("contributed %v, want nothing", expansion.RuleSets)
	}
	if len(expansion.Unresolved) != 2 {
		t.Fatalf("unresolved = %d, want 2", len(expansion.Unresolved))
	}
	for _, link := range expansion.Unresolved {
		if link.Reason != "not found" {
			t.Errorf("reason = %q, want not found", link.Reason)
		}
	}
}

func TestImportExpandParseFailure(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bad/OWNERS.toml"}},
		}),
		"/bad/OWNERS.toml": []byte("not json"),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	if len(expansion.Unresolved) != 1 {
		t.Fatalf("unresolved = %d, want 1", len(expansion.Unresolved))
	}
	if !strings.Contains(expansion.Unresolved[0].Reason, "invalid owner config") {
		t.Errorf("reason = %q, want parse failure detail", expansion.Unresolved[0].Reason)
	}
}

func TestImportExpandCrossBranch(t *testing.T) {
	store, repo := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml", Branch: "refs/heads/stable"}},
		}),
	})
	repo.SeedBranch("refs/heads/stable", map[string][]byte{
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("stable@example.com")},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"stable@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
	if got := expansion.Resolved[0].ImportedConfig.Branch; got != "refs/heads/stable" {
		t.Errorf("imported branch = %q, want refs/heads/stable", got)
	}
}

func TestImportExpandPinsImportingRevision(t *testing.T) {
	store, repo := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml"}},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("old@example.com")},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	// The branch moves after the importing config was loaded; the expansion
	// must stay on the importing config's snapshot.
	repo.SeedBranch(testBranch, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml"}},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("new@example.com")},
		}),
	})

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	expected := []OwnerReference{"old@example.com"}
	if got := ownerRefs(expansion.RuleSets); !reflect.DeepEqual(got, expected) {
		t.Errorf("contributed owners %v, want %v", got, expected)
	}
}

func TestImportExpandRescopesNestedRuleSetImports(t *testing.T) {
	// bar's docs rule set pulls in team owners; what it contributes stays
	// scoped to the docs expressions.
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{{Path: "/bar/OWNERS.toml"}},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{{
				PathExpressions: []string{"*.md"},
				Owners:          []OwnerReference{"docs@example.com"},
				Imports:         []ImportDeclaration{{Path: "/team/OWNERS.toml"}},
			}},
		}),
		"/team/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("team@example.com")},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))

	expansion := NewImportResolver(store).Expand(importing, importing.Imports, ImportAll, nil)
	if len(expansion.RuleSets) != 2 {
		t.Fatalf("rule sets = %v, want 2", expansion.RuleSets)
	}
	rescoped := expansion.RuleSets[1]
	if !reflect.DeepEqual(rescoped.Owners, []OwnerReference{"team@example.com"}) {
		t.Errorf("rescoped owners = %v, want team@example.com", rescoped.Owners)
	}
	if !reflect.DeepEqual(rescoped.PathExpressions, []string{"*.md"}) {
		t.Errorf("rescoped expressions = %v, want [*.md]", rescoped.PathExpressions)
	}
}

func TestImportResolveDiagnostic(t *testing.T) {
	store, _ := newTestStore(t, map[string][]byte{
		"/foo/OWNERS.toml": mustJSON(t, testConfig{
			Imports: []ImportDeclaration{
				{Path: "/bar/OWNERS.toml"},
				{Path: "/missing/OWNERS.toml"},
			},
		}),
		"/bar/OWNERS.toml": mustJSON(t, testConfig{
			RuleSets: []OwnerRuleSet{NewRuleSet("bar@example.com")},
		}),
	})
	importing := mustLoad(t, store, mustKey(t, testProject, testBranch, "/foo"))
	resolver := NewImportResolver(store)

	ok := resolver.Resolve(importing, importing.Imports[0])
	if !ok.Resolved() {
		t.Errorf("expected resolved, got reason %q", ok.Reason)
	}
	missing := resolver.Resolve(importing, importing.Imports[1])
	if missing.Resolved() || missing.Reason != "not found" {
		t.Errorf("expected not found, got %q", missing.Reason)
	}
}
