// Package starcache resolves repository star counts through two cache tiers
// and keeps each repository's status.
//
// The local tier is an in-process map that lives as long as the Cache. The
// persistent tier is a single JSON object stored under [AggregateKey] in a
// kv.Store, mapping "owner/name" to an [Entry]. Misses in both tiers go to a
// [Fetcher], and the result is written to both tiers.
//
// Persistent writes are read-modify-write of the whole aggregate with no lock
// spanning the read and the write. Two writers racing on the same store can
// lose one update; the last write wins.
package starcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/kv"
	"github.com/matzehuels/starmark/pkg/observability"
)

// AggregateKey is the store key holding every persistent entry.
const AggregateKey = "starCounts"

// ErrNoEntry is returned by SetStatus when the repository has no persistent
// entry yet.
var ErrNoEntry = errors.New(errors.ErrCodeNotFound, "no cache entry")

// Fetcher resolves a star count from the remote API.
type Fetcher interface {
	StarCount(ctx context.Context, owner, name string) (int, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, owner, name string) (int, error)

// StarCount calls f.
func (f FetcherFunc) StarCount(ctx context.Context, owner, name string) (int, error) {
	return f(ctx, owner, name)
}

// Options configures a Cache. Store is required.
type Options struct {
	Store   kv.Store
	Fetcher Fetcher
	Logger  *log.Logger
	Now     func() time.Time
}

// Cache is the two-tier star-count cache.
type Cache struct {
	mu    sync.Mutex
	local map[RepoID]int

	store   kv.Store
	fetcher Fetcher
	logger  *log.Logger
	now     func() time.Time
}

// New creates a Cache. A nil Fetcher makes every double miss absent.
func New(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		local:   make(map[RepoID]int),
		store:   opts.Store,
		fetcher: opts.Fetcher,
		logger:  logger,
		now:     now,
	}
}

// Store returns the persistent store.
func (c *Cache) Store() kv.Store { return c.store }

// StarCount returns the star count of id, consulting the local tier, then the
// persistent tier, then the Fetcher. It reports false when the count could
// not be obtained; the failure is logged and never returned.
func (c *Cache) StarCount(ctx context.Context, id RepoID) (int, bool) {
	hooks := observability.Cache()

	if n, ok := c.localGet(id); ok {
		hooks.OnCacheHit(ctx, observability.TierLocal)
		return n, true
	}
	hooks.OnCacheMiss(ctx, observability.TierLocal)

	agg, err := c.load(ctx)
	if err != nil {
		c.logger.Warn("read persistent cache", "repo", id, "err", err)
	} else if e, ok := agg[id.String()]; ok {
		hooks.OnCacheHit(ctx, observability.TierPersistent)
		c.localSet(id, e.Stars)
		return e.Stars, true
	}
	hooks.OnCacheMiss(ctx, observability.TierPersistent)

	if c.fetcher == nil {
		return 0, false
	}
	n, err := c.fetcher.StarCount(ctx, id.Owner, id.Name)
	if err != nil {
		c.logger.Warn("fetch star count", "repo", id, "code", errors.GetCode(err), "err", err)
		return 0, false
	}
	c.logger.Debug("fetched star count", "repo", id, "stars", n)

	c.localSet(id, n)
	if err := c.update(ctx, id, func(e *Entry, exists bool) error {
		if !exists {
			e.Status = StatusUnset
		}
		e.Stars = n
		return nil
	}); err != nil {
		c.logger.Warn("write persistent cache", "repo", id, "err", err)
	}
	return n, true
}

// Status returns the persisted status of id, or StatusUnset when there is no
// entry or the store cannot be read.
func (c *Cache) Status(ctx context.Context, id RepoID) Status {
	agg, err := c.load(ctx)
	if err != nil {
		c.logger.Warn("read persistent cache", "repo", id, "err", err)
		return StatusUnset
	}
	e, ok := agg[id.String()]
	if !ok {
		return StatusUnset
	}
	return e.Status
}

// Entry returns the persisted entry of id.
func (c *Cache) Entry(ctx context.Context, id RepoID) (Entry, bool, error) {
	agg, err := c.load(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := agg[id.String()]
	return e, ok, nil
}

// SetStatus overwrites the status and timestamp of an existing entry. It
// returns an error wrapping ErrNoEntry when id has no entry.
func (c *Cache) SetStatus(ctx context.Context, id RepoID, s Status) error {
	if !s.Valid() {
		return errors.New(errors.ErrCodeInvalidStatus, "invalid status %q", string(s))
	}
	return c.update(ctx, id, func(e *Entry, exists bool) error {
		if !exists {
			return fmt.Errorf("%w: %s", ErrNoEntry, id)
		}
		e.Status = s
		return nil
	})
}

// Cycle advances the status of id and returns the new status.
func (c *Cache) Cycle(ctx context.Context, id RepoID) (Status, error) {
	next := c.Status(ctx, id).Next()
	if err := c.SetStatus(ctx, id, next); err != nil {
		return "", err
	}
	return next, nil
}

// ClearAll empties the local tier and removes the persistent aggregate.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	c.local = make(map[RepoID]int)
	c.mu.Unlock()

	if err := c.store.Remove(ctx, AggregateKey); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "remove %s", AggregateKey)
	}
	c.logger.Info("caches cleared")
	return nil
}

// Snapshot is a copy of both tiers.
type Snapshot struct {
	Local      map[string]int   `json:"local" yaml:"local"`
	Persistent map[string]Entry `json:"persistent" yaml:"persistent"`
}

// Repos returns the union of repository keys in both tiers, sorted.
func (s Snapshot) Repos() []string {
	seen := make(map[string]bool, len(s.Local)+len(s.Persistent))
	for k := range s.Local {
		seen[k] = true
	}
	for k := range s.Persistent {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Inspect returns a copy of both tiers.
func (c *Cache) Inspect(ctx context.Context) (Snapshot, error) {
	agg, err := c.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Local: c.LocalSnapshot(), Persistent: agg}, nil
}

// LocalSnapshot returns a copy of the local tier.
func (c *Cache) LocalSnapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.local))
	for id, n := range c.local {
		out[id.String()] = n
	}
	return out
}

func (c *Cache) localGet(id RepoID) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.local[id]
	return n, ok
}

func (c *Cache) localSet(id RepoID, n int) {
	c.mu.Lock()
	c.local[id] = n
	c.mu.Unlock()
}

// load reads the aggregate. A missing aggregate is empty.
func (c *Cache) load(ctx context.Context) (map[string]Entry, error) {
	values, err := c.store.Get(ctx, AggregateKey)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "read %s", AggregateKey)
	}
	agg := make(map[string]Entry)
	data, ok := values[AggregateKey]
	if !ok || len(data) == 0 {
		return agg, nil
	}
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "decode %s", AggregateKey)
	}
	for k, e := range agg {
		if !e.Status.Valid() {
			e.Status = StatusUnset
			agg[k] = e
		}
	}
	return agg, nil
}

// update applies fn to the entry of id and writes the aggregate back.
func (c *Cache) update(ctx context.Context, id RepoID, fn func(e *Entry, exists bool) error) error {
	agg, err := c.load(ctx)
	if err != nil {
		return err
	}
	key := id.String()
	e, exists := agg[key]
	if err := fn(&e, exists); err != nil {
		return err
	}
	e.Timestamp = c.now().UnixMilli()
	agg[key] = e

	data, err := json.Marshal(agg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s", AggregateKey)
	}
	if err := c.store.Set(ctx, map[string][]byte{AggregateKey: data}); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "write %s", AggregateKey)
	}
	observability.Cache().OnCacheSet(ctx, observability.TierPersistent, len(data))
	return nil
}
