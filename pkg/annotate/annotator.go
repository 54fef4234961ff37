package annotate

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/matzehuels/starmark/pkg/dom"
	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/observability"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// Default selectors for GitHub's search results page.
const (
	DefaultResultsSelector = `div[data-testid="results-list"]`
	DefaultEntrySelector   = `div[class*="search-title"]`
)

// StarSource is the part of the star cache the annotator uses.
type StarSource interface {
	StarCount(ctx context.Context, id starcache.RepoID) (int, bool)
	Status(ctx context.Context, id starcache.RepoID) starcache.Status
	SetStatus(ctx context.Context, id starcache.RepoID, s starcache.Status) error
}

// Options configures an Annotator. Empty selectors select the defaults.
type Options struct {
	ResultsSelector string
	EntrySelector   string
	Logger          *log.Logger

	// OnScan, if set, receives the result of every scan that found entries.
	OnScan func(Result)
}

// Annotator scans documents and annotates result entries.
type Annotator struct {
	cache   StarSource
	results dom.Selector
	entry   dom.Selector
	logger  *log.Logger
	onScan  func(Result)
}

// New creates an Annotator backed by cache.
func New(cache StarSource, opts Options) (*Annotator, error) {
	if opts.ResultsSelector == "" {
		opts.ResultsSelector = DefaultResultsSelector
	}
	if opts.EntrySelector == "" {
		opts.EntrySelector = DefaultEntrySelector
	}
	results, err := dom.Compile(opts.ResultsSelector)
	if err != nil {
		return nil, err
	}
	entry, err := dom.Compile(opts.EntrySelector)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Annotator{cache: cache, results: results, entry: entry, logger: logger, onScan: opts.OnScan}, nil
}

// EntrySelector returns the compiled entry selector.
func (a *Annotator) EntrySelector() dom.Selector { return a.entry }

// ResultsContainer returns the results container of doc, or nil.
func (a *Annotator) ResultsContainer(doc *dom.Document) *html.Node {
	return doc.Query(a.results)
}

// Result summarizes one scan.
type Result struct {
	ScanID    string        `json:"scan_id"`
	Found     bool          `json:"found"` // results container present
	Entries   int           `json:"entries"`
	Annotated int           `json:"annotated"`
	Existing  int           `json:"existing"` // already annotated
	Skipped   int           `json:"skipped"`  // malformed or count absent
	Duration  time.Duration `json:"duration"`
}

// Scan annotates every unannotated entry of doc. Running it again on the
// same document adds nothing.
func (a *Annotator) Scan(ctx context.Context, doc *dom.Document) Result {
	res := Result{ScanID: uuid.NewString()}
	start := time.Now()

	container := a.ResultsContainer(doc)
	if container == nil {
		a.logger.Debug("no results container", "scan", res.ScanID)
		return res
	}
	res.Found = true

	entries := a.entry.All(container)
	res.Entries = len(entries)
	if len(entries) == 0 {
		return res
	}

	hooks := observability.Scan()
	hooks.OnScanStart(ctx, res.ScanID, len(entries))

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		switch err := a.annotate(ctx, doc, entry); {
		case err == nil:
			res.Annotated++
		case errors.Is(err, errAlreadyAnnotated):
			res.Existing++
		default:
			res.Skipped++
			a.logger.Debug("skip entry", "scan", res.ScanID, "reason", errors.UserMessage(err))
		}
	}

	res.Duration = time.Since(start)
	hooks.OnScanComplete(ctx, res.ScanID, res.Annotated, res.Skipped, res.Duration)
	a.logger.Debug("scan complete",
		"scan", res.ScanID,
		"entries", res.Entries,
		"annotated", res.Annotated,
		"existing", res.Existing,
		"skipped", res.Skipped,
		"took", res.Duration.Round(time.Millisecond),
	)
	if a.onScan != nil {
		a.onScan(res)
	}
	return res
}

const errAlreadyAnnotated errors.Code = "ALREADY_ANNOTATED"

func (a *Annotator) annotate(ctx context.Context, doc *dom.Document, entry *html.Node) error {
	if markerSel.First(entry) != nil {
		return errors.New(errAlreadyAnnotated, "entry already annotated")
	}
	id, err := ExtractRepoID(entry)
	if err != nil {
		return err
	}
	stars, ok := a.cache.StarCount(ctx, id)
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "no star count for %s", id)
	}
	status := a.cache.Status(ctx, id)
	return doc.InsertAfter(PrimaryLink(entry), newComposite(id, stars, status))
}
