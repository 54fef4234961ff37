package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/starmark/pkg/config"
	"github.com/matzehuels/starmark/pkg/credential"
	"github.com/matzehuels/starmark/pkg/github"
	"github.com/matzehuels/starmark/pkg/kv"
	"github.com/matzehuels/starmark/pkg/kv/bolt"
	"github.com/matzehuels/starmark/pkg/kv/file"
	"github.com/matzehuels/starmark/pkg/kv/mongo"
	"github.com/matzehuels/starmark/pkg/kv/redis"
	"github.com/matzehuels/starmark/pkg/kv/sqlite"
	"github.com/matzehuels/starmark/pkg/notify"
	"github.com/matzehuels/starmark/pkg/observability"
	"github.com/matzehuels/starmark/pkg/pipeline"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// app is the component graph a command runs against: one persistent store
// shared by the credential and the star cache.
type app struct {
	cfg      *config.Config
	store    kv.Store
	creds    *credential.Store
	client   *github.Client
	cache    *starcache.Cache
	notices  *notify.Recorder
	counters *observability.Counters
	logger   *log.Logger
}

// open loads the configuration and wires the components. Close releases the
// store.
func (c *CLI) open(ctx context.Context) (*app, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("store opened", "backend", cfg.Store.Backend)

	counters := observability.NewCounters()
	observability.SetCacheHooks(counters)
	observability.SetHTTPHooks(counters)
	observability.SetScanHooks(counters)

	notices := &notify.Recorder{}
	creds := credential.NewStore(store, cfg.GitHub.Token)
	client := github.NewClient(github.Options{
		BaseURL:           cfg.GitHub.BaseURL,
		Timeout:           cfg.GitHub.Timeout,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
		Credentials:       creds,
		Notifier:          notify.Multi{notify.NewLogger(c.Logger), notices},
		Logger:            c.Logger,
	})
	cache := starcache.New(starcache.Options{
		Store:   store,
		Fetcher: client,
		Logger:  c.Logger,
	})

	return &app{
		cfg:      cfg,
		store:    store,
		creds:    creds,
		client:   client,
		cache:    cache,
		notices:  notices,
		counters: counters,
		logger:   c.Logger,
	}, nil
}

func (a *app) runner() *pipeline.Runner {
	return pipeline.NewRunner(a.cache, a.cfg.Selectors, a.logger)
}

func (a *app) Close() error {
	observability.Reset()
	return a.store.Close()
}

// openStore opens the configured persistent backend.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil
	case config.BackendRedis:
		return redis.New(ctx, redis.Config{URL: cfg.Store.URL, Prefix: cfg.Store.Prefix})
	case config.BackendMongo:
		return mongo.New(ctx, mongo.Config{
			URI:        cfg.Store.URL,
			Database:   cfg.Store.Database,
			Collection: cfg.Store.Collection,
		})
	}

	path, err := cfg.StorePath()
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	switch cfg.Store.Backend {
	case config.BackendSQLite, config.BackendBolt:
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		return sqlite.New(path)
	case config.BackendBolt:
		return bolt.Open(path)
	default:
		return file.New(path)
	}
}

// storeLocation describes where the configured store keeps its data.
func storeLocation(cfg *config.Config) (string, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return "(in memory)", nil
	case config.BackendRedis, config.BackendMongo:
		return cfg.Store.URL, nil
	}
	return cfg.StorePath()
}
