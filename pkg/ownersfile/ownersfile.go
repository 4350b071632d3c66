// Package ownersfile is the TOML serialization of owner configs. It is one
// concrete Parser strategy; the resolution engine only depends on the
// abstract contract.
package ownersfile

import (
	"github.com/pelletier/go-toml/v2"

	f "github.com/ownertree/ownertree/pkg/functional"
	"github.com/ownertree/ownertree/pkg/owners"
)

type fileImport struct {
	Path   string `toml:"path"`
	Mode   string `toml:"mode,omitempty"`
	Branch string `toml:"branch,omitempty"`
}

type fileRule struct {
	Name                        string       `toml:"name,omitempty"`
	Paths                       []string     `toml:"paths,omitempty"`
	Owners                      []string     `toml:"owners,omitempty"`
	IgnoreGlobalAndParentOwners bool         `toml:"ignore_global_and_parent_owners,omitempty"`
	Imports                     []fileImport `toml:"import,omitempty"`
}

type fileConfig struct {
	IgnoreParentOwners bool         `toml:"ignore_parent_owners,omitempty"`
	Imports            []fileImport `toml:"import,omitempty"`
	Rules              []fileRule   `toml:"rule,omitempty"`
}

// Parser implements owners.Parser for the TOML format.
type Parser struct{}

func (Parser) Parse(key owners.OwnerConfigKey, text []byte) (owners.OwnerConfig, error) {
	filePath := key.FilePath(owners.DefaultNaming())
	var fc fileConfig
	if err := toml.Unmarshal(text, &fc); err != nil {
		return owners.OwnerConfig{}, owners.NewInvalidConfigError(filePath, "%s", err)
	}

	config := owners.OwnerConfig{
		Key:                key,
		IgnoreParentOwners: fc.IgnoreParentOwners,
	}
	imports, err := toImports(filePath, fc.Imports)
	if err != nil {
		return owners.OwnerConfig{}, err
	}
	config.Imports = imports

	for i, rule := range fc.Rules {
		refs := f.RemoveDuplicates(f.Map(rule.Owners, toReference))
		if len(refs) == 0 {
			refs = nil
		}
		ruleSet := owners.OwnerRuleSet{
			Name:                        rule.Name,
			PathExpressions:             rule.Paths,
			Owners:                      refs,
			IgnoreGlobalAndParentOwners: rule.IgnoreGlobalAndParentOwners,
		}
		ruleImports, err := toImports(filePath, rule.Imports)
		if err != nil {
			return owners.OwnerConfig{}, err
		}
		ruleSet.Imports = ruleImports
		if err := ruleSet.Validate(); err != nil {
			return owners.OwnerConfig{}, owners.NewInvalidConfigError(filePath, "rule %d: %s", i+1, err)
		}
		config.RuleSets = append(config.RuleSets, ruleSet)
	}
	if err := config.Validate(); err != nil {
		return owners.OwnerConfig{}, owners.NewInvalidConfigError(filePath, "%s", err)
	}
	return config, nil
}

// Format renders the config back to TOML. A config with nothing to declare
// formats to empty content, which is the deletion sentinel on upsert.
func (Parser) Format(config owners.OwnerConfig) ([]byte, error) {
	if config.IsEmpty() {
		return nil, nil
	}
	fc := fileConfig{
		IgnoreParentOwners: config.IgnoreParentOwners,
		Imports:            fromImports(config.Imports),
	}
	for _, rs := range config.RuleSets {
		fc.Rules = append(fc.Rules, fileRule{
			Name:                        rs.Name,
			Paths:                       rs.PathExpressions,
			Owners:                      f.Map(rs.Owners, fromReference),
			IgnoreGlobalAndParentOwners: rs.IgnoreGlobalAndParentOwners,
			Imports:                     fromImports(rs.Imports),
		})
	}
	return toml.Marshal(fc)
}

func toImports(filePath string, imports []fileImport) ([]owners.ImportDeclaration, error) {
	if len(imports) == 0 {
		return nil, nil
	}
	decls := make([]owners.ImportDeclaration, 0, len(imports))
	for _, imp := range imports {
		mode, err := owners.ParseImportMode(imp.Mode)
		if err != nil {
			return nil, owners.NewInvalidConfigError(filePath, "import %q: %s", imp.Path, err)
		}
		if imp.Path == "" {
			return nil, owners.NewInvalidConfigError(filePath, "import declaration without a path")
		}
		decls = append(decls, owners.ImportDeclaration{Mode: mode, Path: imp.Path, Branch: imp.Branch})
	}
	return decls, nil
}

func fromImports(decls []owners.ImportDeclaration) []fileImport {
	if len(decls) == 0 {
		return nil
	}
	return f.Map(decls, func(decl owners.ImportDeclaration) fileImport {
		mode := ""
		if decl.Mode != owners.ImportAll {
			mode = decl.Mode.String()
		}
		return fileImport{Path: decl.Path, Mode: mode, Branch: decl.Branch}
	})
}

func toReference(s string) owners.OwnerReference {
	return owners.OwnerReference(s)
}

func fromReference(ref owners.OwnerReference) string {
	return string(ref)
}
