package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/starmark/pkg/buildinfo"
	"github.com/matzehuels/starmark/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "starmark"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	verbose    bool
	configPath string
	backend    string
	storeDSN   string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Starmark annotates GitHub search results with star counts",
		Long: `Starmark decorates repository search results with their GitHub star count and a
three-state review control (unset, confirmed, rejected).

Counts are cached in a process-local map and a persistent store, so each repository
is fetched from the API at most once. Review statuses live in the same store.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/starmark/config.toml)")
	flags.StringVar(&c.backend, "store", "", "store backend: file, sqlite, bolt, redis, mongo or memory")
	flags.StringVar(&c.storeDSN, "store-dsn", "", "store path, or connection URL for redis and mongo")

	root.AddCommand(c.annotateCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.starsCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.tokenCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig layers the persistent flags over the file and environment.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.backend != "" {
		cfg.Store.Backend = c.backend
	}
	if c.storeDSN != "" {
		switch cfg.Store.Backend {
		case config.BackendRedis, config.BackendMongo:
			cfg.Store.URL = c.storeDSN
		default:
			cfg.Store.Path = c.storeDSN
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
