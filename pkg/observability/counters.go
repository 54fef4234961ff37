package observability

import (
	"context"
	"sync"
	"time"
)

// Counters aggregates hook events in memory. It implements ScanHooks,
// CacheHooks and HTTPHooks and is safe for concurrent use.
type Counters struct {
	mu    sync.Mutex
	stats Stats
}

// Stats is a point-in-time copy of Counters.
type Stats struct {
	Hits      map[string]int64 `json:"hits"`
	Misses    map[string]int64 `json:"misses"`
	Sets      map[string]int64 `json:"sets"`
	Requests  int64            `json:"requests"`
	Responses map[int]int64    `json:"responses"`
	Errors    int64            `json:"errors"`
	Scans     int64            `json:"scans"`
	Annotated int64            `json:"annotated"`
	Skipped   int64            `json:"skipped"`
	LastScan  time.Time        `json:"last_scan,omitempty"`
}

// NewCounters creates an empty Counters.
func NewCounters() *Counters {
	return &Counters{stats: newStats()}
}

func newStats() Stats {
	return Stats{
		Hits:      map[string]int64{},
		Misses:    map[string]int64{},
		Sets:      map[string]int64{},
		Responses: map[int]int64{},
	}
}

func (c *Counters) OnCacheHit(_ context.Context, tier string) {
	c.mu.Lock()
	c.stats.Hits[tier]++
	c.mu.Unlock()
}

func (c *Counters) OnCacheMiss(_ context.Context, tier string) {
	c.mu.Lock()
	c.stats.Misses[tier]++
	c.mu.Unlock()
}

func (c *Counters) OnCacheSet(_ context.Context, tier string, _ int) {
	c.mu.Lock()
	c.stats.Sets[tier]++
	c.mu.Unlock()
}

func (c *Counters) OnRequest(context.Context, string, string, string) {
	c.mu.Lock()
	c.stats.Requests++
	c.mu.Unlock()
}

func (c *Counters) OnResponse(_ context.Context, _, _, _ string, status int, _ time.Duration) {
	c.mu.Lock()
	c.stats.Responses[status]++
	c.mu.Unlock()
}

func (c *Counters) OnError(context.Context, string, string, string, error) {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}

func (c *Counters) OnScanStart(context.Context, string, int) {}

func (c *Counters) OnScanComplete(_ context.Context, _ string, annotated, skipped int, _ time.Duration) {
	c.mu.Lock()
	c.stats.Scans++
	c.stats.Annotated += int64(annotated)
	c.stats.Skipped += int64(skipped)
	c.stats.LastScan = time.Now()
	c.mu.Unlock()
}

// Snapshot returns a deep copy of the current counts.
func (c *Counters) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.Hits = copyMap(c.stats.Hits)
	out.Misses = copyMap(c.stats.Misses)
	out.Sets = copyMap(c.stats.Sets)
	out.Responses = copyMap(c.stats.Responses)
	return out
}

func copyMap[K comparable](m map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var (
	_ ScanHooks  = (*Counters)(nil)
	_ CacheHooks = (*Counters)(nil)
	_ HTTPHooks  = (*Counters)(nil)
)
