// Package gh resolves owner emails to GitHub accounts and reports PR
// reviewer status. It is an optional identity directory: offline resolution
// uses the static directory instead.
package gh

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/go-github/v63/github"

	f "github.com/ownertree/ownertree/pkg/functional"
	"github.com/ownertree/ownertree/pkg/owners"
)

// Client is the subset of the GitHub API the identity directory needs.
// Tests substitute a mock.
type Client interface {
	SearchUsersByEmail(ctx context.Context, email string) ([]*github.User, error)
	RequestedReviewers(ctx context.Context, pr int) ([]string, error)
}

type ghClient struct {
	owner  string
	repo   string
	client *github.Client
}

// NewClient builds a GitHub API client for one repository.
func NewClient(owner, repo, token string) Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &ghClient{owner: owner, repo: repo, client: client}
}

func (c *ghClient) SearchUsersByEmail(ctx context.Context, email string) ([]*github.User, error) {
	query := fmt.Sprintf("%s in:email", email)
	result, _, err := c.client.Search.Users(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 10},
	})
	if err != nil {
		return nil, err
	}
	return result.Users, nil
}

func (c *ghClient) RequestedReviewers(ctx context.Context, pr int) ([]string, error) {
	reviewers, _, err := c.client.PullRequests.ListReviewers(ctx, c.owner, c.repo, pr, nil)
	if err != nil {
		return nil, err
	}
	return f.Map(reviewers.Users, func(u *github.User) string { return u.GetLogin() }), nil
}

// IdentityDirectory adapts a Client to owners.IdentityResolver. An email
// matching no account or more than one account is unresolved, never an
// error; lookups are memoized for the directory's lifetime. Safe for
// concurrent use: resolution fans out across paths.
type IdentityDirectory struct {
	ctx    context.Context
	client Client

	mu   sync.Mutex
	memo map[string]memoEntry
}

type memoEntry struct {
	identity owners.Identity
	ok       bool
}

func NewIdentityDirectory(ctx context.Context, client Client) *IdentityDirectory {
	return &IdentityDirectory{ctx: ctx, client: client, memo: make(map[string]memoEntry)}
}

func (d *IdentityDirectory) ResolveEmail(email string) (owners.Identity, bool) {
	key := strings.ToLower(email)
	// The lock spans the lookup so concurrent resolvers asking for the same
	// email trigger a single API search.
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, found := d.memo[key]; found {
		return entry.identity, entry.ok
	}
	identity, ok := d.lookup(email)
	d.memo[key] = memoEntry{identity: identity, ok: ok}
	return identity, ok
}

func (d *IdentityDirectory) lookup(email string) (owners.Identity, bool) {
	users, err := d.client.SearchUsersByEmail(d.ctx, email)
	if err != nil {
		// Treat lookup failures as unresolved rather than failing the
		// whole resolution.
		return owners.Identity{}, false
	}
	if len(users) != 1 {
		return owners.Identity{}, false
	}
	return owners.Identity{
		Email: email,
		Name:  users[0].GetName(),
		Login: users[0].GetLogin(),
	}, true
}
