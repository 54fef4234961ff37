package pipeline

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/starmark/pkg/annotate"
	"github.com/matzehuels/starmark/pkg/dom"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/scheduler"
	"github.com/matzehuels/starmark/pkg/starcache"
	"github.com/matzehuels/starmark/pkg/watch"
)

// Session is one open page. All document work runs on the session's
// scheduler. Until Start is called the session is driven by its caller:
// methods run inline and Settle drains deferred work. After Start, methods
// may be called from any goroutine.
type Session struct {
	doc       *dom.Document
	sched     *scheduler.Scheduler
	annotator *annotate.Annotator
	watcher   *watch.Watcher
	logger    *log.Logger

	mu      sync.Mutex
	stats   Stats
	running bool
	cancel  context.CancelFunc
}

// Open parses src, installs the mutation watcher and queues the initial scan.
// Nothing runs until Settle or Start.
func (r *Runner) Open(ctx context.Context, src io.Reader) (*Session, error) {
	doc, err := dom.Parse(src)
	if err != nil {
		return nil, err
	}

	s := &Session{doc: doc, sched: scheduler.New(), logger: r.Logger}
	s.annotator, err = annotate.New(r.Cache, annotate.Options{
		ResultsSelector: r.Selectors.Results,
		EntrySelector:   r.Selectors.Entry,
		Logger:          r.Logger,
		OnScan:          s.recordScan,
	})
	if err != nil {
		return nil, err
	}

	s.sched.SetCheckpoint(func(context.Context) { doc.Flush() })

	s.watcher, err = watch.Install(doc, s.annotator, s.sched, watch.Options{
		RootSelector: r.Selectors.Root,
		Logger:       r.Logger,
	})
	if err != nil {
		if !errors.Is(err, errors.ErrCodeInvalidDocument) {
			return nil, err
		}
		r.Logger.Debug("page not watched", "err", err)
	}

	s.sched.Defer(func(ctx context.Context) { s.annotator.Scan(ctx, doc) })
	return s, nil
}

func (s *Session) recordScan(r annotate.Result) {
	s.mu.Lock()
	s.stats.add(r)
	s.mu.Unlock()
}

// Stats returns the accumulated scan statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Start runs the scheduler on its own goroutine until ctx is canceled or
// Close is called.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	go s.sched.Run(ctx)
}

// Close tears down the watcher and stops the scheduler.
func (s *Session) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-s.sched.Done()
	}
}

// exec runs fn on the scheduler, or inline followed by a mutation checkpoint
// when the session is caller-driven.
func (s *Session) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return s.sched.Do(ctx, fn)
	}
	err := fn(ctx)
	s.doc.Flush()
	return err
}

// Settle waits until no deferred work is left and returns how many tasks
// ran while caller-driven.
func (s *Session) Settle(ctx context.Context) int {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return s.sched.RunPending(ctx)
	}
	for ctx.Err() == nil {
		if err := s.sched.Do(ctx, func(context.Context) error { return nil }); err != nil {
			break
		}
		if s.sched.Len() == 0 {
			break
		}
	}
	return 0
}

// Navigate replaces the children of the results container with the parsed
// fragment, as a client-side router would. The watcher sees the change as one
// mutation batch.
func (s *Session) Navigate(ctx context.Context, fragment string) error {
	return s.exec(ctx, func(context.Context) error {
		container := s.annotator.ResultsContainer(s.doc)
		if container == nil {
			return errors.New(errors.ErrCodeInvalidDocument, "page has no results container")
		}
		nodes, err := s.doc.ParseFragment(container, fragment)
		if err != nil {
			return err
		}
		s.doc.ReplaceChildren(container, nodes...)
		return nil
	})
}

// Scan runs the annotator immediately.
func (s *Session) Scan(ctx context.Context) annotate.Result {
	var res annotate.Result
	_ = s.exec(ctx, func(ctx context.Context) error {
		res = s.annotator.Scan(ctx, s.doc)
		return nil
	})
	return res
}

// Activate cycles the status control of id.
func (s *Session) Activate(ctx context.Context, id starcache.RepoID) (starcache.Status, error) {
	var status starcache.Status
	err := s.exec(ctx, func(ctx context.Context) error {
		var err error
		status, err = s.annotator.ActivateRepo(ctx, s.doc, id)
		return err
	})
	return status, err
}

// Entries lists the annotated entries in document order.
func (s *Session) Entries(ctx context.Context) []annotate.Annotated {
	var out []annotate.Annotated
	_ = s.exec(ctx, func(context.Context) error {
		out = annotate.Entries(s.doc)
		return nil
	})
	return out
}

// Render writes the current document.
func (s *Session) Render(ctx context.Context, w io.Writer) error {
	return s.exec(ctx, func(context.Context) error {
		return s.doc.Render(w)
	})
}

// Watched reports whether the mutation watcher is installed.
func (s *Session) Watched() bool { return s.watcher != nil }
