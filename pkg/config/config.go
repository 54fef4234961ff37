// Package config loads starmark's settings.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, $XDG_CONFIG_HOME/starmark/config.toml unless overridden
//  3. STARMARK_* environment variables
//  4. command-line flags, applied by the caller
//
// Example config.toml:
//
//	[github]
//	token = "ghp_..."
//	timeout = "5s"
//	requests_per_second = 2
//
//	[store]
//	backend = "sqlite"
//	path = "/var/lib/starmark/stars.db"
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/github"
	"github.com/matzehuels/starmark/pkg/pipeline"
)

const (
	appName = "starmark"

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "STARMARK_"

	// DefaultAddr is the server listen address.
	DefaultAddr = "127.0.0.1:7878"
)

// DefaultAllowHosts are the hosts GET /annotate may fetch from.
var DefaultAllowHosts = []string{"github.com"}

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Backends lists the valid store backends.
var Backends = []string{BackendFile, BackendSQLite, BackendBolt, BackendRedis, BackendMongo, BackendMemory}

// Config is the complete configuration.
type Config struct {
	GitHub    GitHub             `toml:"github" envPrefix:"GITHUB_"`
	Store     Store              `toml:"store" envPrefix:"STORE_"`
	Server    Server             `toml:"server" envPrefix:"SERVER_"`
	Selectors pipeline.Selectors `toml:"selectors" envPrefix:"SELECTOR_"`
}

// GitHub configures the remote fetcher.
type GitHub struct {
	BaseURL           string        `toml:"base_url" env:"BASE_URL"`
	Token             string        `toml:"token" env:"TOKEN"`
	Timeout           time.Duration `toml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64       `toml:"requests_per_second" env:"RPS"`
}

// Store selects and configures the persistent store.
type Store struct {
	Backend    string `toml:"backend" env:"BACKEND"`
	Path       string `toml:"path" env:"PATH"`
	URL        string `toml:"url" env:"URL"`
	Prefix     string `toml:"prefix" env:"PREFIX"`
	Database   string `toml:"database" env:"DATABASE"`
	Collection string `toml:"collection" env:"COLLECTION"`
}

// Server configures `starmark serve`.
type Server struct {
	Addr string `toml:"addr" env:"ADDR"`

	// AllowHosts limits the pages GET /annotate fetches. A host also admits
	// its subdomains; "*" admits any host.
	AllowHosts []string `toml:"allow_hosts" env:"ALLOW_HOSTS"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GitHub: GitHub{
			BaseURL: github.DefaultBaseURL,
			Timeout: github.DefaultTimeout,
		},
		Store:  Store{Backend: BackendFile},
		Server: Server{Addr: DefaultAddr, AllowHosts: append([]string(nil), DefaultAllowHosts...)},
	}
}

// Load builds a Config from defaults, the TOML file at path and the
// environment. An empty path loads DefaultPath() if it exists; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			if explicit || !stderrors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path. Unknown keys are an error.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadEnv overlays STARMARK_* environment variables.
func (c *Config) LoadEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if err := errors.ValidateURL(c.GitHub.BaseURL); err != nil {
		return fmt.Errorf("github.base_url: %w", err)
	}
	if c.GitHub.Timeout <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "github.timeout must be positive")
	}
	if c.GitHub.RequestsPerSecond < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "github.requests_per_second cannot be negative")
	}
	valid := false
	for _, b := range Backends {
		if c.Store.Backend == b {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New(errors.ErrCodeInvalidInput, "store.backend %q is not one of %s", c.Store.Backend, strings.Join(Backends, ", "))
	}
	if (c.Store.Backend == BackendRedis || c.Store.Backend == BackendMongo) && c.Store.URL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "store.url is required for the %s backend", c.Store.Backend)
	}
	if c.Server.Addr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "server.addr cannot be empty")
	}
	if len(c.Server.AllowHosts) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "server.allow_hosts cannot be empty; use \"*\" to allow any host")
	}
	return nil
}

// StorePath returns the configured store path, or the default location for
// file-backed backends.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	switch c.Store.Backend {
	case BackendSQLite:
		return filepath.Join(dir, "starmark.db"), nil
	case BackendBolt:
		return filepath.Join(dir, "starmark.bolt"), nil
	default:
		return filepath.Join(dir, "store"), nil
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/starmark/config.toml.
func DefaultPath() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns $XDG_DATA_HOME/starmark (~/.local/share/starmark).
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(envVar, fallback string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}
