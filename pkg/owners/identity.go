package owners

import "strings"

// Identity is a concrete account resolved from a raw owner reference.
type Identity struct {
	Email string
	Name  string
	Login string
}

// IdentityResolver maps a raw owner email to a concrete identity. An email
// with no matching account, with multiple matching accounts, or whose
// account the requester cannot see all collapse to "not resolved" - never an
// error.
type IdentityResolver interface {
	ResolveEmail(email string) (Identity, bool)
}

// StaticDirectory is an in-memory identity directory. Multiple identities
// registered under the same email make the email ambiguous, and a visibility
// predicate can hide accounts from the requester.
type StaticDirectory struct {
	identities map[string][]Identity
	visible    func(Identity) bool
}

// NewStaticDirectory builds a directory from the given identities.
func NewStaticDirectory(ids ...Identity) *StaticDirectory {
	d := &StaticDirectory{identities: make(map[string][]Identity)}
	for _, id := range ids {
		d.Add(id)
	}
	return d
}

// Add registers an identity under its lower-cased email.
func (d *StaticDirectory) Add(id Identity) {
	key := strings.ToLower(id.Email)
	d.identities[key] = append(d.identities[key], id)
}

// WithVisibility restricts resolution to identities the predicate accepts.
func (d *StaticDirectory) WithVisibility(visible func(Identity) bool) *StaticDirectory {
	d.visible = visible
	return d
}

func (d *StaticDirectory) ResolveEmail(email string) (Identity, bool) {
	matches := d.identities[strings.ToLower(email)]
	if len(matches) != 1 {
		return Identity{}, false
	}
	if d.visible != nil && !d.visible(matches[0]) {
		return Identity{}, false
	}
	return matches[0], true
}
