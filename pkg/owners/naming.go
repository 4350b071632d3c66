package owners

import "strings"

// FileNamingConvention describes which file names in a directory count as
// owner config files. A candidate matches when, after stripping the optional
// ".<extension>", it equals the base name with the optional prefix and/or
// suffix decorations around it.
type FileNamingConvention struct {
	BaseFileName string
	Prefix       string
	Suffix       string
	Extension    string
}

// DefaultNaming is the convention used when none is configured.
func DefaultNaming() FileNamingConvention {
	return FileNamingConvention{BaseFileName: "OWNERS.toml"}
}

// DefaultFileName returns the canonical file name written by upserts.
func (n FileNamingConvention) DefaultFileName() string {
	name := n.BaseFileName
	if n.Extension != "" {
		name += "." + n.Extension
	}
	return name
}

// Matches reports whether the candidate file name is recognized as an owner
// config file under this convention.
func (n FileNamingConvention) Matches(fileName string) bool {
	if n.Extension != "" {
		trimmed := strings.TrimSuffix(fileName, "."+n.Extension)
		if trimmed != fileName {
			fileName = trimmed
		}
	}
	if fileName == n.BaseFileName {
		return true
	}
	if n.Prefix != "" && fileName == n.Prefix+n.BaseFileName {
		return true
	}
	if n.Suffix != "" && fileName == n.BaseFileName+n.Suffix {
		return true
	}
	if n.Prefix != "" && n.Suffix != "" && fileName == n.Prefix+n.BaseFileName+n.Suffix {
		return true
	}
	return false
}
