// Package watch re-runs the annotator when new result entries appear.
//
// A Watcher observes child-list mutations under the content root. When a
// batch adds an element that is or contains a result entry, it defers one
// re-scan to the next scheduler turn and ignores the rest of the batch. The
// deferred turn re-resolves the results container and scans only when it
// still holds entries, so the page is free to swap containers between the
// mutation and the re-scan.
package watch

import (
	"context"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/starmark/pkg/annotate"
	"github.com/matzehuels/starmark/pkg/dom"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/scheduler"
)

// DefaultRootSelector selects the content root to observe.
const DefaultRootSelector = "html"

// Options configures a Watcher.
type Options struct {
	RootSelector string
	Logger       *log.Logger
}

// Watcher triggers re-scans on mutation batches.
type Watcher struct {
	doc       *dom.Document
	annotator *annotate.Annotator
	sched     *scheduler.Scheduler
	logger    *log.Logger

	obs     *dom.Observation
	pending bool

	triggers int
	scans    int
}

// Install starts observing doc. It fails when the content root is missing.
func Install(doc *dom.Document, a *annotate.Annotator, s *scheduler.Scheduler, opts Options) (*Watcher, error) {
	sel := opts.RootSelector
	if sel == "" {
		sel = DefaultRootSelector
	}
	compiled, err := dom.Compile(sel)
	if err != nil {
		return nil, err
	}
	root := doc.Query(compiled)
	if root == nil {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "content root %q not found", sel)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	w := &Watcher{doc: doc, annotator: a, sched: s, logger: logger}
	w.obs = doc.Observe(root, dom.ObserveOptions{}, w.onMutations)
	return w, nil
}

// Close stops observing. A re-scan already deferred still runs but does
// nothing.
func (w *Watcher) Close() {
	if w.obs != nil {
		w.obs.Disconnect()
		w.obs = nil
	}
}

// Triggers reports how many batches produced a deferred re-scan.
func (w *Watcher) Triggers() int { return w.triggers }

// Scans reports how many deferred re-scans actually scanned.
func (w *Watcher) Scans() int { return w.scans }

func (w *Watcher) onMutations(records []dom.Record) {
	entry := w.annotator.EntrySelector()
	for _, r := range records {
		if r.Type != dom.ChildList {
			continue
		}
		if !addsEntry(entry, r.Added) {
			continue
		}
		if w.pending {
			// A re-scan is already queued and will see these entries too.
			return
		}
		w.pending = true
		w.triggers++
		w.sched.Defer(w.rescan)
		return
	}
}

func addsEntry(entry dom.Selector, added []*html.Node) bool {
	for _, n := range added {
		if n.Type == html.ElementNode && entry.MatchOrContains(n) {
			return true
		}
	}
	return false
}

func (w *Watcher) rescan(ctx context.Context) {
	w.pending = false
	if w.obs == nil {
		return
	}
	container := w.annotator.ResultsContainer(w.doc)
	if container == nil || w.annotator.EntrySelector().First(container) == nil {
		w.logger.Debug("re-scan skipped: no entries")
		return
	}
	w.scans++
	res := w.annotator.Scan(ctx, w.doc)
	w.logger.Debug("re-scan", "scan", res.ScanID, "annotated", res.Annotated, "skipped", res.Skipped)
}
