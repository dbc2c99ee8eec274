package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/othala/internal"
	"github.com/starford/othala/internal/catalog"
	"github.com/starford/othala/internal/catalogservice"
	"github.com/starford/othala/internal/gist"
	"github.com/starford/othala/internal/install"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/publish"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/resolver"
	"github.com/starford/othala/internal/search"
	"github.com/starford/othala/internal/storage"
	pkgconfig "github.com/starford/othala/pkg/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "othala",
		Usage: "Component registry for agents, commands, skills, hooks, and templates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			listCommand(),
			searchCommand(),
			publishCommand(),
			publishAllCommand(),
			publishRegistryCommand(),
			installCommand(),
			installURLCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// env bundles the pieces every library-facing command needs.
type env struct {
	cfg    *internal.Config
	logger *slog.Logger
	store  storage.Provider
	reg    *registry.Store
}

// loadConfig reads the config file named by the --config flag. An explicitly
// named file must exist; the default location is optional and its absence
// leaves the built-in defaults in force.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// newEnv loads configuration and opens the library for a CLI command. CLI
// logging goes to stderr as text so stdout stays clean for command output.
func newEnv(cmd *cli.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		store:  store,
		reg:    registry.NewStoreAt(store, cfg.Registry.File, cfg.Registry.URLFile),
	}, nil
}

// remote builds a paste client. Fetch-only callers pass an empty token.
func (e *env) remote(token string) gist.Remote {
	opts := []gist.Option{
		gist.WithBaseURL(e.cfg.Gist.APIURL),
		gist.WithTimeout(e.cfg.Gist.Timeout()),
	}
	if token != "" {
		opts = append(opts, gist.WithToken(token))
	}
	return gist.NewClient(opts...)
}

// publishRemote builds a paste client with a credential, which create and
// update calls require.
func (e *env) publishRemote() (gist.Remote, error) {
	token, err := gist.ResolveToken()
	if err != nil {
		return nil, err
	}
	return e.remote(token), nil
}

// openSearch opens the SQLite cache and syncs it against the library. A
// failed sync degrades results but does not block the query.
func (e *env) openSearch() (*search.DB, error) {
	db, err := search.Open(e.cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	if err := search.Sync(db, e.store, e.logger); err != nil {
		e.logger.Warn("sync failed, results may be stale", slog.String("error", err.Error()))
	}
	return db, nil
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Scan the library and write the index snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Library-relative output path",
				Value:   catalog.DefaultFile,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			builder := catalog.NewBuilder(e.store, e.logger)
			snap, err := builder.Build()
			if err != nil {
				return err
			}
			output := cmd.String("output")
			if err := builder.Save(snap, output); err != nil {
				return err
			}
			fmt.Printf("agents: %d\n", len(snap.Agents))
			fmt.Printf("commands: %d\n", len(snap.Commands))
			fmt.Printf("skills: %d\n", len(snap.Skills))
			fmt.Printf("hooks: %d\n", len(snap.Hooks))
			fmt.Printf("templates: %d\n", len(snap.Templates))
			fmt.Printf("index written to %s\n", output)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registry entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Usage: "Filter by component type"},
			&cli.StringFlag{Name: "domain", Usage: "Filter by domain"},
			&cli.StringFlag{Name: "search", Usage: "Substring match over name, description, and path"},
			&cli.StringFlag{Name: "registry-url", Usage: "List a registry published as a paste instead of the local file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			typ, err := typeArg(cmd.String("type"))
			if err != nil {
				return err
			}

			var reg *models.Registry
			if u := cmd.String("registry-url"); u != "" {
				reg, err = registry.FetchRemote(ctx, e.remote(""), u)
			} else {
				reg, err = e.reg.Load()
			}
			if err != nil {
				return err
			}

			entries := filterEntries(reg, typ, cmd.String("domain"), cmd.String("search"))
			for _, rec := range entries {
				fmt.Println(formatEntry(rec))
			}
			fmt.Printf("total: %d\n", len(entries))
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search over the component corpus",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 20},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return fmt.Errorf("usage: othala search <query>")
			}
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			db, err := e.openSearch()
			if err != nil {
				return err
			}
			defer db.Close()

			results, err := db.Search(query, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Printf("%s (%s) %s\n", r.Name, r.Type, r.Path)
				if r.Snippet != "" {
					fmt.Printf("  %s\n", plainSnippet(r.Snippet))
				}
			}
			fmt.Printf("total: %d\n", len(results))
			return nil
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish one component to the paste service",
		ArgsUsage: "<library-relative path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "public", Usage: "Create the paste public"},
			&cli.BoolFlag{Name: "new", Usage: "Ignore any prior paste and create a fresh one"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rel := cmd.Args().First()
			if rel == "" {
				return fmt.Errorf("usage: othala publish <path>")
			}
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			remote, err := e.publishRemote()
			if err != nil {
				return err
			}

			pub := publish.NewPublisher(e.store, remote, e.reg, e.logger)
			out, err := pub.Publish(ctx, rel, publishOptions(cmd, e))
			if err != nil {
				return err
			}
			switch {
			case out.Skipped:
				fmt.Printf("unchanged: %s (%s)\n", rel, out.Record.RemoteURL)
			case out.Created:
				fmt.Printf("published: %s -> %s\n", rel, out.Record.RemoteURL)
			default:
				fmt.Printf("updated: %s -> %s\n", rel, out.Record.RemoteURL)
			}
			return nil
		},
	}
}

func publishAllCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish-all",
		Usage: "Publish every component in the library",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "public", Usage: "Create new pastes public"},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause between paste service calls",
				Value: 500 * time.Millisecond,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			remote, err := e.publishRemote()
			if err != nil {
				return err
			}

			pub := publish.NewPublisher(e.store, remote, e.reg, e.logger)
			sum, err := pub.PublishAll(ctx, publishOptions(cmd, e), cmd.Duration("delay"))
			if err != nil {
				return err
			}
			fmt.Printf("published: %d, skipped: %d, failed: %d\n", sum.Published, sum.Skipped, sum.Failed)
			if sum.Failed > 0 {
				return fmt.Errorf("%d components failed to publish", sum.Failed)
			}
			return nil
		},
	}
}

func publishRegistryCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish-registry",
		Usage: "Upload the registry file itself as a paste",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "public", Usage: "Create the paste public"},
			&cli.BoolFlag{Name: "new", Usage: "Ignore the remembered paste and create a fresh one"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			remote, err := e.publishRemote()
			if err != nil {
				return err
			}

			pub := publish.NewPublisher(e.store, remote, e.reg, e.logger)
			url, err := pub.PublishRegistry(ctx, publishOptions(cmd, e))
			if err != nil {
				return err
			}
			fmt.Printf("registry published: %s\n", url)
			return nil
		},
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Resolve a published component by name and install it",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Usage: "Component type filter"},
			&cli.StringFlag{Name: "domain", Usage: "Domain filter"},
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing target"},
			&cli.StringFlag{Name: "registry-url", Usage: "Resolve against a registry published as a paste"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return fmt.Errorf("usage: othala install <name>")
			}
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			typ, err := typeArg(cmd.String("type"))
			if err != nil {
				return err
			}

			inst := install.NewInstaller(e.store, e.remote(""), e.reg, e.logger)
			f := resolver.Filters{Type: typ, Domain: cmd.String("domain")}
			res, err := inst.ByName(ctx, name, f, cmd.String("registry-url"), install.Options{
				Force: cmd.Bool("force"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("installed: %s\n", res.Path)
			return nil
		},
	}
}

func installURLCommand() *cli.Command {
	return &cli.Command{
		Name:      "install-url",
		Usage:     "Install raw paste content, classifying it into the library",
		ArgsUsage: "<paste url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Explicit library-relative target path"},
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing target"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			url := cmd.Args().First()
			if url == "" {
				return fmt.Errorf("usage: othala install-url <url>")
			}
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}

			inst := install.NewInstaller(e.store, e.remote(""), e.reg, e.logger)
			res, err := inst.FromURL(ctx, url, install.Options{
				Force:  cmd.Bool("force"),
				Target: cmd.String("target"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("installed: %s\n", res.Path)
			if !res.Certain {
				fmt.Println("warning: type and domain were guessed; verify the placement")
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the read-only discovery server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// stdout carries the protocol; newEnv already logs to stderr.
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			db, err := e.openSearch()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := catalogservice.NewService(e.store, db, e.reg, e.remote(""), e.logger)
			return mcpserver.New(svc).ServeStdio()
		},
	}
}

// publishOptions merges the config's default visibility with the command's
// flags.
func publishOptions(cmd *cli.Command, e *env) publish.Options {
	return publish.Options{
		Public: e.cfg.Gist.Public || cmd.Bool("public"),
		New:    cmd.Bool("new"),
	}
}

// typeArg validates an optional --type value.
func typeArg(v string) (models.ComponentType, error) {
	if v == "" {
		return "", nil
	}
	t := models.ComponentType(v)
	if !t.Valid() {
		return "", fmt.Errorf("unknown component type: %s", v)
	}
	return t, nil
}

// filterEntries applies type/domain/substring filters and returns a
// deterministic ordering (type, then name, then path).
func filterEntries(reg *models.Registry, typ models.ComponentType, domain, query string) []*models.ComponentRecord {
	q := strings.ToLower(query)
	var out []*models.ComponentRecord
	for _, rec := range reg.Components {
		if typ != "" && rec.Type != typ {
			continue
		}
		if domain != "" && rec.Domain != domain {
			continue
		}
		if q != "" && !matchesQuery(rec, q) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func matchesQuery(rec *models.ComponentRecord, q string) bool {
	if strings.Contains(strings.ToLower(rec.Name), q) || strings.Contains(strings.ToLower(rec.Path), q) {
		return true
	}
	return rec.Description != nil && strings.Contains(strings.ToLower(*rec.Description), q)
}

func formatEntry(rec *models.ComponentRecord) string {
	desc := ""
	if rec.Description != nil {
		desc = *rec.Description
	}
	if rec.Domain == "" {
		return fmt.Sprintf("%s (%s): %s", rec.Name, rec.Type, desc)
	}
	return fmt.Sprintf("%s (%s) - %s: %s", rec.Name, rec.Type, rec.Domain, desc)
}

// plainSnippet strips the match markers the search cache embeds for HTML
// consumers.
func plainSnippet(s string) string {
	s = strings.ReplaceAll(s, "<b>", "")
	s = strings.ReplaceAll(s, "</b>", "")
	return strings.ReplaceAll(s, "\n", " ")
}
