// Package pipeline runs page sessions: load a document, annotate it, follow
// client-side navigations and render the result.
//
// A [Session] owns one document together with its scheduler, annotator and
// mutation watcher, mirroring one open browser tab. The [Runner] creates
// sessions that share a star cache, so counts fetched in one session are
// served from the cache in the next.
//
// # Usage
//
// One-shot, as used by `starmark annotate`:
//
//	runner := pipeline.NewRunner(cache, pipeline.Selectors{}, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Source: f})
//	os.Stdout.Write(result.HTML)
//
// Long-lived, as used by the server and the TUI:
//
//	sess, err := runner.Open(ctx, f)
//	sess.Start(ctx)
//	defer sess.Close()
//	sess.Activate(ctx, id)
package pipeline

import (
	"io"
	"time"

	"github.com/matzehuels/starmark/pkg/annotate"
	"github.com/matzehuels/starmark/pkg/errors"
)

// Selectors locate the parts of the page. Empty fields select the defaults
// of the annotate and watch packages.
type Selectors struct {
	Results string `toml:"results" env:"RESULTS"`
	Entry   string `toml:"entry" env:"ENTRY"`
	Root    string `toml:"root" env:"ROOT"`
}

// Options configures a one-shot Execute.
type Options struct {
	// Source is the HTML document to annotate.
	Source io.Reader

	// Navigations are HTML fragments that successively replace the results
	// container's children, each followed by a settle.
	Navigations []string
}

// Validate reports whether the options can be executed.
func (o Options) Validate() error {
	if o.Source == nil {
		return errors.New(errors.ErrCodeInvalidInput, "no source document")
	}
	return nil
}

// Stats aggregates the scans of a session.
type Stats struct {
	Scans     int           `json:"scans"`
	Annotated int           `json:"annotated"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

func (s *Stats) add(r annotate.Result) {
	s.Scans++
	s.Annotated += r.Annotated
	s.Skipped += r.Skipped
}

// Result is the outcome of Execute.
type Result struct {
	HTML    []byte               `json:"-"`
	Entries []annotate.Annotated `json:"entries"`
	Stats   Stats                `json:"stats"`
}
