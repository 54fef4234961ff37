package cli

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/starmark/pkg/config"
	"github.com/matzehuels/starmark/pkg/credential"
	"github.com/matzehuels/starmark/pkg/kv"
	"github.com/matzehuels/starmark/pkg/kv/sqlite"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// isolate points every XDG directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func newTestCLI() *CLI {
	return New(io.Discard, log.InfoLevel)
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newTestCLI().RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	isolate(t)

	tests := []struct {
		name        string
		backend     string
		dsn         string
		wantBackend string
		wantPath    string
		wantURL     string
	}{
		{name: "defaults", wantBackend: config.BackendFile},
		{name: "sqlite path", backend: "sqlite", dsn: "/tmp/x.db", wantBackend: config.BackendSQLite, wantPath: "/tmp/x.db"},
		{name: "redis url", backend: "redis", dsn: "redis://localhost:6379/0", wantBackend: config.BackendRedis, wantURL: "redis://localhost:6379/0"},
		{name: "mongo url", backend: "mongo", dsn: "mongodb://localhost", wantBackend: config.BackendMongo, wantURL: "mongodb://localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &CLI{backend: tt.backend, storeDSN: tt.dsn}
			cfg, err := c.loadConfig()
			if err != nil {
				t.Fatalf("loadConfig() error: %v", err)
			}
			if cfg.Store.Backend != tt.wantBackend {
				t.Errorf("Backend = %q, want %q", cfg.Store.Backend, tt.wantBackend)
			}
			if cfg.Store.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", cfg.Store.Path, tt.wantPath)
			}
			if cfg.Store.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", cfg.Store.URL, tt.wantURL)
			}
		})
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	isolate(t)
	c := &CLI{backend: "etcd"}
	if _, err := c.loadConfig(); err == nil {
		t.Error("loadConfig() accepted an unknown backend")
	}
}

func TestStoreLocation(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		backend string
		want    string
	}{
		{config.BackendFile, filepath.Join(dir, "data", appName, "store")},
		{config.BackendSQLite, filepath.Join(dir, "data", appName, "starmark.db")},
		{config.BackendBolt, filepath.Join(dir, "data", appName, "starmark.bolt")},
		{config.BackendMemory, "(in memory)"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Backend = tt.backend
			got, err := storeLocation(cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("storeLocation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenStoreBackends(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	for _, backend := range []string{config.BackendFile, config.BackendSQLite, config.BackendBolt, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.Backend = backend
			store, err := openStore(ctx, cfg)
			if err != nil {
				t.Fatalf("openStore() error: %v", err)
			}
			defer store.Close()

			if err := store.Set(ctx, map[string][]byte{"k": []byte("v")}); err != nil {
				t.Fatal(err)
			}
			got, err := store.Get(ctx, "k")
			if err != nil || string(got["k"]) != "v" {
				t.Errorf("Get() = %v, %v", got, err)
			}
		})
	}
}

func TestCommandsShareStore(t *testing.T) {
	dir := isolate(t)
	var hits atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"full_name":"octocat/Hello-World","stargazers_count":1500}`)
	}))
	defer api.Close()
	t.Setenv("STARMARK_GITHUB_BASE_URL", api.URL)

	dbPath := filepath.Join(dir, "stars.db")
	store := []string{"--store", "sqlite", "--store-dsn", dbPath}
	run := func(args ...string) {
		t.Helper()
		if err := execute(t, append(store, args...)...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	run("stars", "octocat/Hello-World")
	run("stars", "octocat/Hello-World")
	if got := hits.Load(); got != 1 {
		t.Errorf("API hits = %d, want 1 (second run served from the store)", got)
	}

	run("status", "cycle", "octocat/Hello-World")
	run("status", "cycle", "octocat/Hello-World")
	run("token", "set", "ghp_secret")

	s, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	var agg map[string]starcache.Entry
	if _, err := kv.GetJSON(ctx, s, starcache.AggregateKey, &agg); err != nil {
		t.Fatal(err)
	}
	e := agg["octocat/Hello-World"]
	if e.Stars != 1500 || e.Status != starcache.StatusRejected {
		t.Errorf("entry = %+v, want 1500 rejected", e)
	}
	if tok, _, _ := kv.GetString(ctx, s, credential.Key); tok != "ghp_secret" {
		t.Errorf("stored token = %q", tok)
	}

	run("cache", "clear")
	if got, _ := s.Get(ctx, starcache.AggregateKey); len(got) != 0 {
		t.Error("cache clear left the aggregate behind")
	}
}

func TestStatusSetWithoutEntry(t *testing.T) {
	isolate(t)
	err := execute(t, "--store", "memory", "status", "set", "octocat/Hello-World", "confirmed")
	if err == nil {
		t.Fatal("status set on a missing entry succeeded")
	}
}

func TestStarsRejectsMalformedRepo(t *testing.T) {
	isolate(t)
	if err := execute(t, "--store", "memory", "stars", "not-a-repo"); err == nil {
		t.Error("stars accepted a malformed repository")
	}
}

func TestAnnotateCommand(t *testing.T) {
	dir := isolate(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"stargazers_count":42}`)
	}))
	defer api.Close()
	t.Setenv("STARMARK_GITHUB_BASE_URL", api.URL)

	page := filepath.Join(dir, "page.html")
	next := filepath.Join(dir, "next.html")
	out := filepath.Join(dir, "out.html")
	if err := os.WriteFile(page, []byte(resultsPage), 0o644); err != nil {
		t.Fatal(err)
	}
	fragment := `<div class="search-title"><a title="charmbracelet/log">charmbracelet/log</a></div>`
	if err := os.WriteFile(next, []byte(fragment), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, "--store", "memory", "annotate", page, "-o", out, "--navigate", "@"+next); err != nil {
		t.Fatal(err)
	}
	html, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	got := string(html)
	if !strings.Contains(got, `data-repo="charmbracelet/log"`) || !strings.Contains(got, "⭐ 42") {
		t.Errorf("annotated output lacks the navigated entry:\n%s", got)
	}
	if strings.Contains(got, "golang/go") {
		t.Error("navigation did not replace the results")
	}
}
