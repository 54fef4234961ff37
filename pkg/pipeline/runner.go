package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/starmark/pkg/starcache"
)

// Runner opens page sessions backed by a shared star cache.
//
// The Runner holds no per-page state. Multiple goroutines can open sessions
// on the same Runner.
type Runner struct {
	Cache     *starcache.Cache
	Selectors Selectors
	Logger    *log.Logger
}

// NewRunner creates a runner. If logger is nil, log.Default() is used.
func NewRunner(cache *starcache.Cache, sel Selectors, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: cache, Selectors: sel, Logger: logger}
}

// Execute runs open → navigate… → settle → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()

	sess, err := r.Open(ctx, opts.Source)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer sess.Close()

	sess.Settle(ctx)
	for i, frag := range opts.Navigations {
		if err := sess.Navigate(ctx, frag); err != nil {
			return nil, fmt.Errorf("navigate %d: %w", i+1, err)
		}
		sess.Settle(ctx)
	}

	var buf bytes.Buffer
	if err := sess.Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	result := &Result{
		HTML:    buf.Bytes(),
		Entries: sess.Entries(ctx),
		Stats:   sess.Stats(),
	}
	result.Stats.Duration = time.Since(start)

	r.Logger.Info("annotated page",
		"entries", len(result.Entries),
		"scans", result.Stats.Scans,
		"skipped", result.Stats.Skipped,
		"duration", result.Stats.Duration.Round(time.Millisecond))
	return result, nil
}

// ExecuteBytes is Execute on an in-memory document.
func (r *Runner) ExecuteBytes(ctx context.Context, src []byte, navigations ...string) (*Result, error) {
	return r.Execute(ctx, Options{Source: bytes.NewReader(src), Navigations: navigations})
}
