package app

import (
	"encoding/json"
	"sort"

	f "github.com/ownertree/ownertree/pkg/functional"
	"github.com/ownertree/ownertree/pkg/owners"
)

// OutputData is the JSON-ready aggregate of a multi-path resolution, for
// automation consumers.
type OutputData struct {
	FileOwners          map[string][]string `json:"file_owners"`
	OwnedByAllUsers     []string            `json:"owned_by_all_users,omitempty"`
	UnownedFiles        []string            `json:"unowned_files,omitempty"`
	UnresolvedImports   map[string][]string `json:"unresolved_imports,omitempty"`
	HasUnresolvedOwners bool                `json:"has_unresolved_owners"`
}

// NewOutputData flattens per-path results into one report.
func NewOutputData(results map[string]*owners.OwnerResolverResult) *OutputData {
	out := &OutputData{
		FileOwners:        make(map[string][]string),
		UnresolvedImports: make(map[string][]string),
	}
	for path, result := range results {
		if result.OwnedByAllUsers {
			out.OwnedByAllUsers = append(out.OwnedByAllUsers, path)
			continue
		}
		emails := f.Map(result.Owners, func(id owners.Identity) string { return id.Email })
		if len(emails) == 0 {
			out.UnownedFiles = append(out.UnownedFiles, path)
		} else {
			out.FileOwners[path] = emails
		}
		if result.HasUnresolvedOwners {
			out.HasUnresolvedOwners = true
		}
		for _, unresolved := range result.UnresolvedImports {
			out.UnresolvedImports[path] = append(out.UnresolvedImports[path],
				unresolved.ImportedConfig.String()+": "+unresolved.Reason)
		}
	}
	sort.Strings(out.OwnedByAllUsers)
	sort.Strings(out.UnownedFiles)
	if len(out.UnresolvedImports) == 0 {
		out.UnresolvedImports = nil
	}
	return out
}

// JSON renders the report.
func (od *OutputData) JSON() ([]byte, error) {
	return json.MarshalIndent(od, "", "  ")
}
