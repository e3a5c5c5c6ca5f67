// Package config loads tractstory settings from a TOML file.
//
// The default location follows the XDG convention:
// $XDG_CONFIG_HOME/tractstory/config.toml, falling back to
// ~/.config/tractstory/config.toml. A missing file at the default location
// is not an error; every setting has a default. Command-line flags override
// file values.
//
//	[dataset]
//	tracts = "s3://census/tracts.csv"
//	years  = "s3://census/years.csv"
//	strict = true
//
//	[dataset.s3]
//	region = "us-east-2"
//
//	[render]
//	formats = ["svg", "json"]
//	settle_ticks = 600
//
//	[server]
//	addr = ":8080"
//	sessions = "redis"
//
//	[cache]
//	backend = "redis"
//	[cache.redis]
//	addr = "localhost:6379"
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/tractstory/pkg/dataset"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
)

const appName = "tractstory"

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full settings file.
type Config struct {
	Dataset DatasetConfig `toml:"dataset"`
	Render  RenderConfig  `toml:"render"`
	Server  ServerConfig  `toml:"server"`
	Cache   CacheConfig   `toml:"cache"`
}

// DatasetConfig locates the input tables.
type DatasetConfig struct {
	Tracts    string           `toml:"tracts"`
	Years     string           `toml:"years"`
	Strict    bool             `toml:"strict"`
	Tolerance float64          `toml:"tolerance"`
	Timeout   Duration         `toml:"timeout"`
	S3        dataset.S3Config `toml:"s3"`
}

// RenderConfig holds defaults for the render command.
type RenderConfig struct {
	Formats     []string `toml:"formats"`
	Output      string   `toml:"output"`
	SettleTicks int      `toml:"settle_ticks"`
	Seed        uint64   `toml:"seed"`
	Tooltips    bool     `toml:"tooltips"`
	Scale       float64  `toml:"scale"`
}

// ServerConfig holds defaults for serve mode.
type ServerConfig struct {
	Addr       string   `toml:"addr"`
	Sessions   string   `toml:"sessions"` // memory, file or redis
	SessionTTL Duration `toml:"session_ttl"`
	Coalesce   Duration `toml:"coalesce"`
	Tween      int      `toml:"tween"` // blended frames before each settled frame
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend string      `toml:"backend"` // file, redis or none
	Dir     string      `toml:"dir"`
	Redis   RedisConfig `toml:"redis"`
}

// RedisConfig is shared by the redis cache and the redis session store.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Accepted enumerations.
var (
	Formats       = []string{"svg", "json", "png", "pdf"}
	SessionStores = []string{"memory", "file", "redis"}
	CacheBackends = []string{"file", "redis", "none"}
)

// Default returns the built-in settings.
func Default() *Config {
	src := dataset.DefaultSource()
	return &Config{
		Dataset: DatasetConfig{
			Tracts:    src.Tracts,
			Years:     src.Years,
			Tolerance: dataset.DefaultTolerance,
			Timeout:   Duration{dataset.DefaultFetchTimeout},
		},
		Render: RenderConfig{
			Formats:     []string{"svg"},
			Output:      ".",
			SettleTicks: 600,
			Seed:        1,
			Tooltips:    true,
			Scale:       2,
		},
		Server: ServerConfig{
			Addr:       ":8080",
			Sessions:   "memory",
			SessionTTL: Duration{24 * time.Hour},
			Coalesce:   Duration{50 * time.Millisecond},
			Tween:      4,
		},
		Cache: CacheConfig{
			Backend: "file",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: appName + ":"},
		},
	}
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the file at path over the defaults. An empty path means the
// default location, which may be absent. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Default(), nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, tserrors.New(tserrors.ErrCodeFileNotFound, "config file %s not found", path)
		}
		return nil, tserrors.Wrap(tserrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, tserrors.Wrap(tserrors.ErrCodeInvalidConfig, err, "%s", path)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, tserrors.Wrap(tserrors.ErrCodeInvalidConfig, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, tserrors.New(tserrors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Source().Validate(); err != nil {
		return err
	}
	if c.Dataset.Tolerance < 0 {
		return tserrors.New(tserrors.ErrCodeInvalidConfig, "dataset.tolerance must not be negative")
	}
	for _, f := range c.Render.Formats {
		if !slices.Contains(Formats, f) {
			return tserrors.New(tserrors.ErrCodeInvalidConfig, "render.formats: unknown format %q (valid: %s)", f, strings.Join(Formats, ", "))
		}
	}
	if c.Render.SettleTicks < 0 {
		return tserrors.New(tserrors.ErrCodeInvalidConfig, "render.settle_ticks must not be negative")
	}
	if c.Render.Scale <= 0 {
		return tserrors.New(tserrors.ErrCodeInvalidConfig, "render.scale must be positive")
	}
	if c.Server.Tween < 0 {
		return tserrors.New(tserrors.ErrCodeInvalidConfig, "server.tween must not be negative")
	}
	if !slices.Contains(SessionStores, c.Server.Sessions) {
		return tserrors.New(tserrors.ErrCodeInvalidConfig, "server.sessions: unknown store %q (valid: %s)", c.Server.Sessions, strings.Join(SessionStores, ", "))
	}
	if !slices.Contains(CacheBackends, c.Cache.Backend) {
		return tserrors.New(tserrors.ErrCodeInvalidConfig, "cache.backend: unknown backend %q (valid: %s)", c.Cache.Backend, strings.Join(CacheBackends, ", "))
	}
	return nil
}

// Source returns the dataset locations.
func (c *Config) Source() dataset.Source {
	return dataset.Source{Tracts: c.Dataset.Tracts, Years: c.Dataset.Years}
}

// Write encodes the configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
