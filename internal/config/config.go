package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ownertree/ownertree/pkg/owners"
)

// ConfigFileName is looked up in the repository root.
const ConfigFileName = "ownertree.toml"

// FileNames configures which file names count as owner configs.
type FileNames struct {
	Base      string `toml:"base"`
	Prefix    string `toml:"prefix"`
	Suffix    string `toml:"suffix"`
	Extension string `toml:"extension"`
}

// Scoring overrides the default dimension weights.
type Scoring struct {
	DistanceWeight              *float64 `toml:"distance_weight"`
	IsReviewerWeight            *float64 `toml:"is_reviewer_weight"`
	IsExplicitlyMentionedWeight *float64 `toml:"is_explicitly_mentioned_weight"`
}

// Config is the application configuration read from ownertree.toml.
type Config struct {
	Backend             string     `toml:"backend"`
	DefaultBranch       string     `toml:"default_branch"`
	EnableDefaultConfig bool       `toml:"enable_default_config"`
	FileNames           *FileNames `toml:"file_names"`
	Scoring             *Scoring   `toml:"scoring"`
}

// ReadConfig loads ownertree.toml from the given directory, falling back to
// defaults when the file is absent. A present but unreadable or unparseable
// file also yields the defaults, with the error returned for the caller to
// warn about.
func ReadConfig(path string) (*Config, error) {
	defaultConfig := &Config{
		Backend:             "tomlowners",
		DefaultBranch:       "refs/heads/main",
		EnableDefaultConfig: false,
		FileNames:           &FileNames{Base: "OWNERS.toml"},
		Scoring:             &Scoring{},
	}

	fileName := filepath.Join(path, ConfigFileName)
	if _, err := os.Stat(fileName); errors.Is(err, os.ErrNotExist) {
		return defaultConfig, nil
	}
	file, err := os.ReadFile(fileName)
	if err != nil {
		return defaultConfig, err
	}
	config := &Config{}
	if err := toml.Unmarshal(file, config); err != nil {
		return defaultConfig, err
	}
	if config.DefaultBranch == "" {
		config.DefaultBranch = "refs/heads/main"
	}
	if config.Backend == "" {
		config.Backend = "tomlowners"
	}
	if config.FileNames == nil || config.FileNames.Base == "" {
		config.FileNames = &FileNames{Base: "OWNERS.toml"}
	}
	if config.Scoring == nil {
		config.Scoring = &Scoring{}
	}
	return config, nil
}

// Naming converts the file name configuration to the engine's convention.
func (c *Config) Naming() owners.FileNamingConvention {
	return owners.FileNamingConvention{
		BaseFileName: c.FileNames.Base,
		Prefix:       c.FileNames.Prefix,
		Suffix:       c.FileNames.Suffix,
		Extension:    c.FileNames.Extension,
	}
}

// ScoreWeights returns the scoring dimensions with any configured weight
// overrides applied.
func (c *Config) ScoreWeights() (distance, isReviewer, isMentioned owners.Score) {
	distance = owners.ScoreDistance
	isReviewer = owners.ScoreIsReviewer
	isMentioned = owners.ScoreIsExplicitlyMentioned
	if c.Scoring == nil {
		return distance, isReviewer, isMentioned
	}
	if c.Scoring.DistanceWeight != nil {
		distance.Weight = *c.Scoring.DistanceWeight
	}
	if c.Scoring.IsReviewerWeight != nil {
		isReviewer.Weight = *c.Scoring.IsReviewerWeight
	}
	if c.Scoring.IsExplicitlyMentionedWeight != nil {
		isMentioned.Weight = *c.Scoring.IsExplicitlyMentionedWeight
	}
	return distance, isReviewer, isMentioned
}
