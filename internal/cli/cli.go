package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/pkg/buildinfo"
	"github.com/matzehuels/tractstory/pkg/cache"
	"github.com/matzehuels/tractstory/pkg/config"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/pipeline"
	"github.com/matzehuels/tractstory/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "tractstory"

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

	// Out receives command output that is not logging (tables, config).
	Out io.Writer

	configPath string
	config     *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Tractstory tells the story of St. Louis census tracts in eight charts",
		Long: `Tractstory renders a scroll-driven narrative of St. Louis City and County census
tracts: population trends, income, race and poverty, one chart state per step.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tractstory/config.toml)")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.stepsCommand())
	root.AddCommand(c.playCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file once per process.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.config = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner with the configured cache and loader
// settings.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	store, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewRunner(store, nil, c.Logger)
	runner.Loader.Strict = cfg.Dataset.Strict
	runner.Loader.Tolerance = cfg.Dataset.Tolerance
	runner.Loader.Timeout = cfg.Dataset.Timeout.Duration
	runner.Loader.S3Config = cfg.Dataset.S3
	return runner, nil
}

func newCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Cache.Backend == "none" {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Backend == "redis" {
		rc, err := newRedisCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return rc, nil
	}
	dir := cfg.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func newRedisCache(ctx context.Context, cfg *config.Config) (*cache.RedisCache, error) {
	r := cfg.Cache.Redis
	return cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Prefix:   r.Prefix,
	})
}

// newSessionStore creates the configured viewer session store. The redis
// store shares the cache's redis settings.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Server.Sessions {
	case "file":
		fs, err := session.NewFileStore("")
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "redis":
		rc, err := newRedisCache(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return session.NewCacheStore(rc), nil
	default:
		return session.NewMemoryStore(), nil
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/tractstory/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Flag Helpers
// =============================================================================

// sourceFlags overrides the configured dataset locations.
type sourceFlags struct {
	tracts string
	years  string
	strict bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tracts, "tracts", "", "tract table: URL, s3://bucket/key or local path")
	cmd.Flags().StringVar(&f.years, "years", "", "population-by-year table: URL, s3://bucket/key or local path")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail when area summaries disagree with the year table")
}

// apply writes the flags over cfg.
func (f *sourceFlags) apply(cfg *config.Config) dataset.Source {
	if f.tracts != "" {
		cfg.Dataset.Tracts = f.tracts
	}
	if f.years != "" {
		cfg.Dataset.Years = f.years
	}
	if f.strict {
		cfg.Dataset.Strict = true
	}
	return cfg.Source()
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
