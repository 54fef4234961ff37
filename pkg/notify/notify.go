// Package notify delivers user-facing notices about failed star-count lookups.
//
// Only classified API responses produce a notice. Transport failures are
// logged by the caller and never reach a Notifier.
package notify

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Kind identifies the class of a notice.
type Kind string

const (
	KindCredentialInvalid Kind = "credential_invalid"
	KindRateLimited       Kind = "rate_limited"
	KindGeneric           Kind = "generic"
)

// Event is a single user-facing notice.
type Event struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Notifier receives notices. Implementations must not block for long; they
// are called on the scan path.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, ev Event)

// Notify calls f(ctx, ev).
func (f Func) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Nop discards every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Multi fans a notice out to several notifiers in order.
type Multi []Notifier

// Notify forwards ev to every non-nil notifier.
func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Logger writes notices as warnings.
type Logger struct {
	Log *log.Logger
}

// NewLogger returns a Logger writing to l, or to log.Default() when l is nil.
func NewLogger(l *log.Logger) *Logger {
	if l == nil {
		l = log.Default()
	}
	return &Logger{Log: l}
}

// Notify logs ev at warn level.
func (n *Logger) Notify(_ context.Context, ev Event) {
	n.Log.Warn(ev.Message, "notice", string(ev.Kind))
}

// Recorder keeps every notice it receives. It is safe for concurrent use and
// is mainly useful in tests and on the server's debug surface.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify appends ev.
func (r *Recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded notices.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many notices of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

// Reset drops the recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
