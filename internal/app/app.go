package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ownertree/ownertree/internal/backend"
	"github.com/ownertree/ownertree/internal/config"
	"github.com/ownertree/ownertree/internal/git"
	f "github.com/ownertree/ownertree/pkg/functional"
	"github.com/ownertree/ownertree/pkg/owners"
)

// Config holds what the application needs to resolve owners in one
// repository.
type Config struct {
	RepoDir       string
	Project       string
	Branch        string
	Worktree      bool
	Trace         bool
	Identities    owners.IdentityResolver
	InfoBuffer    io.Writer
	WarningBuffer io.Writer
}

// App wires storage, backend, store and resolver for one repository.
type App struct {
	Conf     *config.Config
	config   *Config
	store    *owners.ConfigStore
	resolver *owners.OwnerResolver
	scanner  *owners.ConfigScanner
	backend  backend.Backend
}

// New builds an App from the repository's ownertree.toml and the run
// configuration.
func New(cfg Config) (*App, error) {
	if cfg.InfoBuffer == nil {
		cfg.InfoBuffer = io.Discard
	}
	if cfg.WarningBuffer == nil {
		cfg.WarningBuffer = io.Discard
	}
	if cfg.Project == "" {
		cfg.Project = projectName(cfg.RepoDir)
	}

	conf, err := config.ReadConfig(cfg.RepoDir)
	if err != nil {
		fmt.Fprintf(cfg.WarningBuffer, "WARNING: error reading %s - using default config\n", config.ConfigFileName)
	}
	if cfg.Branch == "" {
		cfg.Branch = conf.DefaultBranch
	}

	be, err := backend.Get(conf.Backend)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var reader owners.RepoReader
	var writer owners.RepoWriter
	if cfg.Worktree {
		worktree, err := git.NewWorktree(cfg.RepoDir)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		reader = worktree
	} else {
		repo := git.NewRepo(cfg.RepoDir)
		reader = repo
		writer = repo
	}

	store := owners.NewConfigStore(reader, writer, be.Parser, conf.Naming())
	identities := cfg.Identities
	if identities == nil {
		identities = owners.NewStaticDirectory()
	}
	resolver := owners.NewOwnerResolver(store, cfg.Project, be.NewMatcher(cfg.WarningBuffer), identities, cfg.WarningBuffer)
	if conf.EnableDefaultConfig {
		resolver.WithDefaultConfig()
	}

	return &App{
		Conf:     conf,
		config:   &cfg,
		store:    store,
		resolver: resolver,
		scanner:  owners.NewConfigScanner(reader, be.Parser, conf.Naming()),
		backend:  be,
	}, nil
}

// Store exposes the config store for upsert commands.
func (a *App) Store() *owners.ConfigStore {
	return a.store
}

// Scanner exposes the config scanner for scan/check commands.
func (a *App) Scanner() *owners.ConfigScanner {
	return a.scanner
}

// Project returns the project name resolution runs under.
func (a *App) Project() string {
	return a.config.Project
}

// Branch returns the effective branch.
func (a *App) Branch() string {
	return a.config.Branch
}

// ResolveOwners resolves each path independently and in parallel. Results
// are keyed by path; the first resolution error aborts the group.
func (a *App) ResolveOwners(ctx context.Context, paths []string) (map[string]*owners.OwnerResolverResult, error) {
	results := make(map[string]*owners.OwnerResolverResult, len(paths))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, path := range paths {
		g.Go(func() error {
			result, err := a.resolvePath(path)
			if err != nil {
				return trace.Wrap(err)
			}
			mu.Lock()
			results[path] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, trace.Wrap(err)
	}
	return results, nil
}

func (a *App) resolvePath(path string) (*owners.OwnerResolverResult, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if a.config.Trace {
		return a.resolver.ResolveTraced(a.config.Branch, "", path)
	}
	return a.resolver.Resolve(a.config.Branch, "", path)
}

// ScoredOwner is one ranked suggestion.
type ScoredOwner struct {
	Email string  `json:"email"`
	Login string  `json:"login,omitempty"`
	Score float64 `json:"score"`
}

// Suggest ranks the resolved owners of one result by combining the distance
// and reviewer dimensions. Reviewer logins/emails mark owners that already
// review the change.
func (a *App) Suggest(result *owners.OwnerResolverResult, reviewers []string) ([]ScoredOwner, error) {
	distScore, reviewerScore, mentionedScore := a.Conf.ScoreWeights()

	maxDistance := result.MaxDistance
	if maxDistance < 1 {
		maxDistance = 1
	}
	distance, err := owners.NewScoringWithMax(distScore, maxDistance)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	isReviewer, err := owners.NewScoring(reviewerScore)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	isMentioned, err := owners.NewScoring(mentionedScore)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	reviewerSet := f.NewSet[string]()
	for _, r := range reviewers {
		reviewerSet.Add(strings.ToLower(strings.TrimPrefix(r, "@")))
	}

	for _, identity := range result.Owners {
		email := identity.Email
		dist, ok := result.Distances[owners.OwnerReference(email)]
		if !ok {
			dist = maxDistance
		}
		if dist > maxDistance {
			dist = maxDistance
		}
		if err := distance.PutValue(email, dist); err != nil {
			return nil, trace.Wrap(err)
		}
		reviewing := reviewerSet.Contains(strings.ToLower(email)) ||
			(identity.Login != "" && reviewerSet.Contains(strings.ToLower(identity.Login)))
		if err := isReviewer.PutValue(email, boolValue(reviewing)); err != nil {
			return nil, trace.Wrap(err)
		}
		if err := isMentioned.PutValue(email, 1); err != nil {
			return nil, trace.Wrap(err)
		}
	}

	combined := owners.CombineScorings(distance, isReviewer, isMentioned)
	emails := f.Map(result.Owners, func(id owners.Identity) string { return id.Email })
	combined.Sort(emails)

	logins := make(map[string]string, len(result.Owners))
	for _, identity := range result.Owners {
		logins[identity.Email] = identity.Login
	}
	return f.Map(emails, func(email string) ScoredOwner {
		return ScoredOwner{Email: email, Login: logins[email], Score: combined.TotalScore(email)}
	}), nil
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

func projectName(dir string) string {
	trimmed := strings.TrimRight(dir, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" || trimmed == "." {
		return "repo"
	}
	return trimmed
}
