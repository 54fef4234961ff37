// Package dom is a small mutable HTML document with mutation observation.
//
// A [Document] wraps a golang.org/x/net/html tree. Every structural change made
// through its methods is recorded as a [Record]; [Document.Flush] delivers the
// pending records, batched, to each [Observation] whose root contains the
// changed node. Changes made directly on the html.Node tree are invisible to
// observers.
//
// Selectors are CSS, compiled with cascadia.
//
// A Document is not safe for concurrent use. Callers serialize access, usually
// through a scheduler.Scheduler.
package dom
