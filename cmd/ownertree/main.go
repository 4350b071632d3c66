package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ownertree/ownertree/internal/app"
	"github.com/ownertree/ownertree/internal/git"
	gh "github.com/ownertree/ownertree/internal/github"
	f "github.com/ownertree/ownertree/pkg/functional"
	"github.com/ownertree/ownertree/pkg/owners"
	"github.com/ownertree/ownertree/pkg/ownersfile"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

var (
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	titleColor = color.New(color.Bold)
)

func main() {
	var repo string
	var branch string
	var worktree bool
	var jsonOut bool
	var traced bool
	var ghRepo string
	var ghToken string

	repoFlag := &cli.StringFlag{
		Name:        "repo",
		Aliases:     []string{"r"},
		Value:       "./",
		Usage:       "Path to local Git repo",
		Destination: &repo,
	}
	branchFlag := &cli.StringFlag{
		Name:        "branch",
		Aliases:     []string{"b"},
		Value:       "",
		Usage:       "Fully-qualified branch ref (defaults to ownertree.toml default_branch)",
		Destination: &branch,
	}
	worktreeFlag := &cli.BoolFlag{
		Name:        "worktree",
		Usage:       "Resolve against the checked-out tree instead of a branch snapshot",
		Destination: &worktree,
	}
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "Emit JSON output",
		Destination: &jsonOut,
	}
	traceFlag := &cli.BoolFlag{
		Name:        "trace",
		Usage:       "Collect resolution trace messages",
		Destination: &traced,
	}
	ghRepoFlag := &cli.StringFlag{
		Name:        "github-repo",
		Usage:       "owner/repo used to resolve emails against GitHub accounts",
		Destination: &ghRepo,
	}
	ghTokenFlag := &cli.StringFlag{
		Name:        "github-token",
		Value:       getEnv("GITHUB_TOKEN", ""),
		Usage:       "GitHub authentication token",
		Destination: &ghToken,
	}

	newApp := func(ctx context.Context) (*app.App, error) {
		cfg := app.Config{
			RepoDir:       repo,
			Branch:        branch,
			Worktree:      worktree,
			Trace:         traced,
			WarningBuffer: os.Stderr,
		}
		if ghRepo != "" {
			split := strings.Split(ghRepo, "/")
			if len(split) != 2 {
				return nil, fmt.Errorf("invalid github repo name: %s", ghRepo)
			}
			client := gh.NewClient(split[0], split[1], ghToken)
			cfg.Identities = gh.NewIdentityDirectory(ctx, client)
		} else {
			cfg.Identities = trustingDirectory{}
		}
		return app.New(cfg)
	}

	cliApp := &cli.App{
		Name:  "ownertree",
		Usage: "Resolve hierarchical code owners for files in a Git repository",
		Commands: []*cli.Command{
			{
				Name:    "owners",
				Aliases: []string{"o"},
				Usage:   "Resolve the owners of one or more files",
				Flags:   []cli.Flag{repoFlag, branchFlag, worktreeFlag, jsonFlag, traceFlag, ghRepoFlag, ghTokenFlag},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() == 0 {
						return fmt.Errorf("at least one file path is required")
					}
					a, err := newApp(cCtx.Context)
					if err != nil {
						return err
					}
					results, err := a.ResolveOwners(cCtx.Context, cCtx.Args().Slice())
					if err != nil {
						return err
					}
					return printResults(cCtx.App.Writer, results, jsonOut, traced)
				},
			},
			{
				Name:  "suggest",
				Usage: "Rank the owners of a file as reviewer suggestions",
				Flags: append([]cli.Flag{repoFlag, branchFlag, worktreeFlag, jsonFlag, ghRepoFlag, ghTokenFlag},
					&cli.StringSliceFlag{
						Name:  "reviewer",
						Usage: "Login or email already reviewing the change (repeatable)",
					},
					&cli.IntFlag{
						Name:  "pr",
						Usage: "Pull request whose requested reviewers count as reviewing",
					}),
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("exactly one file path is required")
					}
					a, err := newApp(cCtx.Context)
					if err != nil {
						return err
					}
					path := cCtx.Args().First()
					results, err := a.ResolveOwners(cCtx.Context, []string{path})
					if err != nil {
						return err
					}
					result := results[path]
					if result.OwnedByAllUsers {
						fmt.Fprintln(cCtx.App.Writer, "owned by all users")
						return nil
					}
					reviewers := cCtx.StringSlice("reviewer")
					if pr := cCtx.Int("pr"); pr > 0 && ghRepo != "" {
						split := strings.Split(ghRepo, "/")
						requested, err := gh.NewClient(split[0], split[1], ghToken).RequestedReviewers(cCtx.Context, pr)
						if err != nil {
							return err
						}
						reviewers = append(reviewers, requested...)
					}
					scored, err := a.Suggest(result, reviewers)
					if err != nil {
						return err
					}
					for _, s := range scored {
						fmt.Fprintf(cCtx.App.Writer, "%.3f %s\n", s.Score, s.Email)
					}
					return nil
				},
			},
			{
				Name:  "diff-owners",
				Usage: "Resolve owners for every file changed by a unified diff read from stdin",
				Flags: []cli.Flag{repoFlag, branchFlag, worktreeFlag, jsonFlag, ghRepoFlag, ghTokenFlag},
				Action: func(cCtx *cli.Context) error {
					diffBytes, err := io.ReadAll(cCtx.App.Reader)
					if err != nil {
						return err
					}
					files, err := git.ChangedFiles(diffBytes)
					if err != nil {
						return err
					}
					if len(files) == 0 {
						return nil
					}
					a, err := newApp(cCtx.Context)
					if err != nil {
						return err
					}
					results, err := a.ResolveOwners(cCtx.Context, files)
					if err != nil {
						return err
					}
					return printResults(cCtx.App.Writer, results, jsonOut, false)
				},
			},
			{
				Name:  "scan",
				Usage: "List every owner config in the branch, reporting invalid ones",
				Flags: []cli.Flag{repoFlag, branchFlag, worktreeFlag},
				Action: func(cCtx *cli.Context) error {
					a, err := newApp(cCtx.Context)
					if err != nil {
						return err
					}
					invalid := 0
					err = a.Scanner().Scan(a.Project(), a.Branch(),
						func(config owners.OwnerConfig) bool {
							fmt.Fprintf(cCtx.App.Writer, "%s (%d rule sets, %d imports)\n",
								config.Key.FilePath(a.Store().Naming()), len(config.RuleSets), len(config.Imports))
							return true
						},
						func(path string, err error) {
							invalid++
							errColor.Fprintf(cCtx.App.ErrWriter, "INVALID %s: %v\n", path, err)
						},
						defaultOption(a))
					if err != nil {
						return err
					}
					if invalid > 0 {
						return fmt.Errorf("%d invalid owner config(s)", invalid)
					}
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "Validate a single owner config file",
				Flags: []cli.Flag{repoFlag, branchFlag, worktreeFlag},
				Action: func(cCtx *cli.Context) error {
					if cCtx.NArg() != 1 {
						return fmt.Errorf("exactly one config file path is required")
					}
					a, err := newApp(cCtx.Context)
					if err != nil {
						return err
					}
					filePath := "/" + strings.TrimPrefix(cCtx.Args().First(), "/")
					key, err := owners.NewOwnerConfigKey(a.Project(), a.Branch(), pathDir(filePath))
					if err != nil {
						return err
					}
					key = key.WithFileName(pathBase(filePath))
					config, err := a.Store().Load(key, "")
					if err != nil {
						return err
					}
					if config == nil {
						return fmt.Errorf("no owner config at %s", filePath)
					}
					fmt.Fprintf(cCtx.App.Writer, "%s OK (%d rule sets, %d imports)\n",
						filePath, len(config.RuleSets), len(config.Imports))
					return nil
				},
			},
			{
				Name:  "set",
				Usage: "Add or remove owners of a directory's global rule set",
				Flags: append([]cli.Flag{repoFlag, branchFlag},
					&cli.StringFlag{Name: "dir", Required: true, Usage: "Directory whose config to modify"},
					&cli.StringSliceFlag{Name: "add", Usage: "Owner email to add (repeatable)"},
					&cli.StringSliceFlag{Name: "remove", Usage: "Owner email to remove (repeatable)"},
					&cli.BoolFlag{Name: "ignore-parents", Usage: "Set ignore_parent_owners"},
					&cli.BoolFlag{Name: "inherit-parents", Usage: "Clear ignore_parent_owners"},
					&cli.BoolFlag{Name: "clear", Usage: "Remove all rule sets"},
					&cli.StringFlag{Name: "author", Value: "ownertree", Usage: "Commit author name"},
					&cli.StringFlag{Name: "email", Value: "ownertree@localhost", Usage: "Commit author email"}),
				Action: func(cCtx *cli.Context) error {
					a, err := newApp(cCtx.Context)
					if err != nil {
						return err
					}
					return runSet(cCtx, a)
				},
			},
			{
				Name:  "fmt",
				Usage: "Canonically format an owner config read from stdin",
				Action: func(cCtx *cli.Context) error {
					input, err := io.ReadAll(cCtx.App.Reader)
					if err != nil {
						return err
					}
					key, err := owners.NewOwnerConfigKey("stdin", "refs/heads/main", "/")
					if err != nil {
						return err
					}
					parser := ownersfile.Parser{}
					config, err := parser.Parse(key, input)
					if err != nil {
						return err
					}
					formatted, err := parser.Format(config)
					if err != nil {
						return err
					}
					_, err = cCtx.App.Writer.Write(formatted)
					return err
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		errColor.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func printResults(w io.Writer, results map[string]*owners.OwnerResolverResult, jsonOut, traced bool) error {
	if jsonOut {
		out, err := app.NewOutputData(results).JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
	paths := make([]string, 0, len(results))
	for path := range results {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		result := results[path]
		titleColor.Fprintf(w, "%s\n", path)
		switch {
		case result.OwnedByAllUsers:
			fmt.Fprintln(w, "  owned by all users")
		case len(result.Owners) == 0:
			warnColor.Fprintln(w, "  no owners")
		default:
			for _, identity := range result.Owners {
				fmt.Fprintf(w, "  %s\n", identity.Email)
			}
		}
		if result.HasUnresolvedOwners {
			warnColor.Fprintln(w, "  (some owner references could not be resolved)")
		}
		for _, unresolved := range result.UnresolvedImports {
			warnColor.Fprintf(w, "  unresolved import %s: %s\n", unresolved.ImportedConfig, unresolved.Reason)
		}
		if traced {
			for _, msg := range result.TraceMessages {
				fmt.Fprintf(w, "  # %s\n", msg)
			}
		}
	}
	return nil
}

func runSet(cCtx *cli.Context, a *app.App) error {
	dir := "/" + strings.TrimPrefix(cCtx.String("dir"), "/")
	key, err := owners.NewOwnerConfigKey(a.Project(), a.Branch(), dir)
	if err != nil {
		return err
	}

	update := owners.ConfigUpdate{}
	switch {
	case cCtx.Bool("clear"):
		update.ClearRuleSets = true
	case len(cCtx.StringSlice("add")) > 0 || len(cCtx.StringSlice("remove")) > 0:
		current, err := a.Store().Load(key, "")
		if err != nil {
			return err
		}
		ruleSets := editGlobalOwners(current, cCtx.StringSlice("add"), cCtx.StringSlice("remove"))
		update.RuleSets = &ruleSets
	}
	if cCtx.Bool("ignore-parents") {
		v := true
		update.IgnoreParentOwners = &v
	}
	if cCtx.Bool("inherit-parents") {
		v := false
		update.IgnoreParentOwners = &v
	}

	ident := owners.PersonIdent{Name: cCtx.String("author"), Email: cCtx.String("email")}
	updated, err := a.Store().Upsert(key, update, ident)
	if err != nil {
		return err
	}
	if updated == nil {
		fmt.Fprintf(cCtx.App.Writer, "%s: no owner config\n", dir)
		return nil
	}
	fmt.Fprintf(cCtx.App.Writer, "%s: %d rule sets at %s\n", dir, len(updated.RuleSets), updated.Revision)
	return nil
}

// editGlobalOwners applies add/remove to the first global rule set, keeping
// every other rule set untouched.
func editGlobalOwners(current *owners.OwnerConfig, add, remove []string) []owners.OwnerRuleSet {
	ruleSets := make([]owners.OwnerRuleSet, 0)
	if current != nil {
		ruleSets = append(ruleSets, current.RuleSets...)
	}
	idx := -1
	for i, rs := range ruleSets {
		if rs.IsGlobal() {
			idx = i
			break
		}
	}
	if idx == -1 {
		ruleSets = append([]owners.OwnerRuleSet{owners.NewRuleSet()}, ruleSets...)
		idx = 0
	}
	refs := append([]owners.OwnerReference{}, ruleSets[idx].Owners...)
	for _, email := range add {
		refs = append(refs, owners.OwnerReference(email))
	}
	for _, email := range remove {
		refs = f.RemoveValue(refs, owners.OwnerReference(email))
	}
	refs = f.RemoveDuplicates(refs)
	updated := ruleSets[idx]
	updated.Owners = refs
	ruleSets[idx] = updated
	if len(refs) == 0 && updated.IsGlobal() && len(updated.Imports) == 0 {
		ruleSets = append(ruleSets[:idx], ruleSets[idx+1:]...)
	}
	return ruleSets
}

func defaultOption(a *app.App) owners.DefaultConfigOption {
	if a.Conf.EnableDefaultConfig {
		return owners.IncludeDefaultConfig
	}
	return owners.ExcludeDefaultConfig
}

func pathDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

func pathBase(p string) string {
	idx := strings.LastIndex(p, "/")
	return p[idx+1:]
}

// trustingDirectory accepts every email as a resolvable identity. Used when
// no GitHub directory is configured, so offline runs still list owners.
type trustingDirectory struct{}

func (trustingDirectory) ResolveEmail(email string) (owners.Identity, bool) {
	return owners.Identity{Email: email}, true
}
