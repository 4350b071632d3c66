// Package backend holds the closed set of owner-config backends. A backend
// couples a config file parser with a path expression dialect; it is
// selected by a string id from the application config, never discovered
// dynamically.
package backend

import (
	"io"
	"sort"

	"github.com/gravitational/trace"

	"github.com/ownertree/ownertree/pkg/owners"
	"github.com/ownertree/ownertree/pkg/ownersfile"
)

const (
	// TOMLOwners parses TOML owner configs and matches path expressions
	// with the strict glob dialect.
	TOMLOwners = "tomlowners"
	// FindOwners parses the same format but matches with the find-owners
	// compatible dialect where a lone `*` crosses segment boundaries.
	FindOwners = "findowners"
)

// Backend is one concrete parser+matcher pairing.
type Backend struct {
	ID         string
	Parser     owners.Parser
	NewMatcher func(warnings io.Writer) owners.PathMatcher
}

var registry = map[string]Backend{
	TOMLOwners: {
		ID:     TOMLOwners,
		Parser: ownersfile.Parser{},
		NewMatcher: func(w io.Writer) owners.PathMatcher {
			return owners.StrictMatcher{Warnings: w}
		},
	},
	FindOwners: {
		ID:     FindOwners,
		Parser: ownersfile.Parser{},
		NewMatcher: func(w io.Writer) owners.PathMatcher {
			return owners.FindOwnersMatcher{Warnings: w}
		},
	},
}

// Get returns the backend registered under id.
func Get(id string) (Backend, error) {
	b, ok := registry[id]
	if !ok {
		return Backend{}, trace.BadParameter("unknown backend %q (available: %v)", id, IDs())
	}
	return b, nil
}

// IDs lists the registered backend ids in stable order.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
