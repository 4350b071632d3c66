package owners

import (
	"encoding/json"
	"testing"
)

// testConfig is the serialized shape used by testParser. Engine tests use a
// JSON parser stand-in so they exercise the abstract Parser contract rather
// than one concrete text format.
type testConfig struct {
	IgnoreParentOwners bool                `json:"ignore_parent_owners,omitempty"`
	RuleSets           []OwnerRuleSet      `json:"rule_sets,omitempty"`
	Imports            []ImportDeclaration `json:"imports,omitempty"`
}

type testParser struct{}

func (testParser) Parse(key OwnerConfigKey, text []byte) (OwnerConfig, error) {
	var tc testConfig
	if err := json.Unmarshal(text, &tc); err != nil {
		return OwnerConfig{}, NewInvalidConfigError(key.FilePath(DefaultNaming()), "%s", err)
	}
	config := OwnerConfig{
		Key:                key,
		IgnoreParentOwners: tc.IgnoreParentOwners,
		RuleSets:           tc.RuleSets,
		Imports:            tc.Imports,
	}
	if err := config.Validate(); err != nil {
		return OwnerConfig{}, NewInvalidConfigError(key.FilePath(DefaultNaming()), "%s", err)
	}
	return config, nil
}

func (testParser) Format(config OwnerConfig) ([]byte, error) {
	if config.IsEmpty() {
		return nil, nil
	}
	return json.Marshal(testConfig{
		IgnoreParentOwners: config.IgnoreParentOwners,
		RuleSets:           config.RuleSets,
		Imports:            config.Imports,
	})
}

func mustJSON(t *testing.T, tc testConfig) []byte {
	t.Helper()
	data, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal test config: %v", err)
	}
	return data
}

func mustKey(t *testing.T, project, branch, folder string) OwnerConfigKey {
	t.Helper()
	key, err := NewOwnerConfigKey(project, branch, folder)
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	return key
}

const (
	testProject = "demo"
	testBranch  = "refs/heads/main"
)

// newTestStore seeds a MemRepo with the given files on the main branch and
// returns a store over it.
func newTestStore(t *testing.T, files map[string][]byte) (*ConfigStore, *MemRepo) {
	t.Helper()
	repo := NewMemRepo()
	repo.SeedBranch(testBranch, files)
	return NewConfigStore(repo, repo, testParser{}, DefaultNaming()), repo
}
