// Package pkg provides the libraries behind starmark, the GitHub search
// results annotator.
//
// # Overview
//
// Starmark decorates every repository entry of a search results page with its
// star count and a three-state review control. The pkg directory is organized
// into three areas:
//
//  1. Domain logic (star cache, page annotation, mutation watching)
//  2. Infrastructure (key-value stores, configuration, credentials, hooks)
//  3. Orchestration (page sessions used by the CLI and the server)
//
// # Architecture
//
// The data flow for one page:
//
//	HTML page
//	     ↓
//	[dom] document (parse, query, mutate, observe)
//	     ↓
//	[annotate] scan (extract owner/name, look up stars, insert badge + control)
//	     ↑               ↓
//	[watch] re-scan   [starcache] local map → persistent store → [github] API
//	     ↓
//	annotated HTML
//
// # Main Packages
//
// [starcache] - Two-tier star count cache. A process-local map in front of a
// single JSON aggregate ("starCounts") in a [kv] store, which also holds each
// repository's review status.
//
// [github] - Remote fetcher for stargazers_count with credential support and
// user-facing notices for invalid credentials and rate limits.
//
// [annotate] - Finds result entries, extracts repository identifiers and
// inserts the badge and status control exactly once per entry.
//
// [watch] - Observes the document and schedules one deferred re-scan per
// mutation batch, so client-side navigation is annotated too.
//
// [pipeline] - Page sessions tying a document, its [scheduler], the annotator
// and the watcher together.
//
// [kv] - The persistent store contract with file, SQLite, bbolt, Redis, MongoDB
// and in-memory backends.
//
// [config], [credential], [notify], [observability], [errors] - Ambient
// support shared by every entry point.
//
// # Testing
//
// Run tests:
//
//	go test ./...                        # All tests
//	go test ./pkg/starcache/...          # Specific package
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB backends
//
// [starcache]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/starcache
// [github]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/github
// [annotate]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/annotate
// [watch]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/watch
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/pipeline
// [scheduler]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/scheduler
// [dom]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/dom
// [kv]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/kv
// [config]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/config
// [credential]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/credential
// [notify]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/notify
// [observability]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/starmark/pkg/errors
package pkg
