package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/starmark/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GitHub.BaseURL != "https://api.github.com" {
		t.Errorf("BaseURL = %q", cfg.GitHub.BaseURL)
	}
	if cfg.GitHub.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.GitHub.Timeout)
	}
	if cfg.Store.Backend != BackendFile || cfg.Server.Addr != DefaultAddr {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Server.AllowHosts) != 1 || cfg.Server.AllowHosts[0] != "github.com" {
		t.Errorf("AllowHosts = %v", cfg.Server.AllowHosts)
	}
}

func TestFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[github]
token = "from-file"
timeout = "3s"
requests_per_second = 1.5

[store]
backend = "sqlite"
path = "/tmp/stars.db"

[server]
allow_hosts = ["github.com", "example.org"]

[selectors]
entry = "li.result"
`)
	t.Setenv("STARMARK_GITHUB_TOKEN", "from-env")
	t.Setenv("STARMARK_SERVER_ADDR", ":9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GitHub.Token != "from-env" {
		t.Errorf("Token = %q, env should win over file", cfg.GitHub.Token)
	}
	if cfg.GitHub.Timeout != 3*time.Second || cfg.GitHub.RequestsPerSecond != 1.5 {
		t.Errorf("GitHub = %+v", cfg.GitHub)
	}
	if cfg.Store.Backend != BackendSQLite || cfg.Store.Path != "/tmp/stars.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Selectors.Entry != "li.result" {
		t.Errorf("Selectors = %+v", cfg.Selectors)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if strings.Join(cfg.Server.AllowHosts, ",") != "github.com,example.org" {
		t.Errorf("Server.AllowHosts = %v", cfg.Server.AllowHosts)
	}
}

func TestExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[github]\ntokn = \"typo\"\n")
	_, err := Load(path)
	if !errors.Is(err, errors.ErrCodeInvalidInput) || !strings.Contains(err.Error(), "github.tokn") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestEnvParseError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("STARMARK_GITHUB_TIMEOUT", "soon")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad base url", func(c *Config) { c.GitHub.BaseURL = "ftp://x" }},
		{"zero timeout", func(c *Config) { c.GitHub.Timeout = 0 }},
		{"negative rps", func(c *Config) { c.GitHub.RequestsPerSecond = -1 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty allow list", func(c *Config) { c.Server.AllowHosts = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestStorePath(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)

	tests := []struct {
		backend string
		want    string
	}{
		{BackendFile, filepath.Join(data, "starmark", "store")},
		{BackendSQLite, filepath.Join(data, "starmark", "starmark.db")},
		{BackendBolt, filepath.Join(data, "starmark", "starmark.bolt")},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Store.Backend = tt.backend
		got, err := cfg.StorePath()
		if err != nil || got != tt.want {
			t.Errorf("StorePath(%s) = %q, %v; want %q", tt.backend, got, err, tt.want)
		}
	}

	cfg := Default()
	cfg.Store.Path = "/explicit"
	if got, _ := cfg.StorePath(); got != "/explicit" {
		t.Errorf("explicit StorePath() = %q", got)
	}
}
