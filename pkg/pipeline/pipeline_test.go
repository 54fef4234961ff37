package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/kv"
	"github.com/matzehuels/starmark/pkg/starcache"
)

const searchPage = `<!DOCTYPE html><html><head><title>Search</title></head><body>
<main id="app">
<div data-testid="results-list">
  <div class="search-title"><a title="octocat/Hello-World My first repository" href="/octocat/Hello-World">octocat/Hello-World</a></div>
  <div class="search-title"><a title="golang/go The Go programming language">golang/go</a></div>
</div>
</main>
</body></html>`

const page2 = `<div class="search-title"><a title="charmbracelet/log">charmbracelet/log</a></div>
<div class="search-title"><a title="octocat/Hello-World">octocat/Hello-World</a></div>`

type fetchCounter struct {
	calls atomic.Int32
}

func (f *fetchCounter) StarCount(_ context.Context, owner, name string) (int, error) {
	f.calls.Add(1)
	if owner == "octocat" {
		return 1500, nil
	}
	return 100 + len(name), nil
}

func newRunner(store kv.Store, f starcache.Fetcher) *Runner {
	cache := starcache.New(starcache.Options{Store: store, Fetcher: f})
	return NewRunner(cache, Selectors{}, nil)
}

func TestExecute(t *testing.T) {
	f := &fetchCounter{}
	r := newRunner(kv.NewMemoryStore(), f)

	res, err := r.ExecuteBytes(context.Background(), []byte(searchPage))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("Entries = %v", res.Entries)
	}
	if res.Entries[0].Stars != 1500 {
		t.Errorf("Entries[0] = %+v", res.Entries[0])
	}
	if !strings.Contains(string(res.HTML), "⭐ 1500") {
		t.Error("rendered HTML lacks the badge")
	}
	if res.Stats.Scans != 1 || res.Stats.Annotated != 2 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestExecuteWithNavigation(t *testing.T) {
	f := &fetchCounter{}
	r := newRunner(kv.NewMemoryStore(), f)

	res, err := r.ExecuteBytes(context.Background(), []byte(searchPage), page2)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(res.Entries) != 2 || res.Entries[0].Repo.String() != "charmbracelet/log" {
		t.Errorf("Entries after navigation = %+v", res.Entries)
	}
	if res.Stats.Scans != 2 {
		t.Errorf("Scans = %d, want initial + one re-scan", res.Stats.Scans)
	}
	// octocat/Hello-World is served from the local tier on the second page.
	if got := f.calls.Load(); got != 3 {
		t.Errorf("fetches = %d, want 3", got)
	}
}

func TestSessionsShareCache(t *testing.T) {
	store := kv.NewMemoryStore()
	f := &fetchCounter{}

	if _, err := newRunner(store, f).ExecuteBytes(context.Background(), []byte(searchPage)); err != nil {
		t.Fatal(err)
	}
	// A new process: fresh local tier, same persistent store.
	if _, err := newRunner(store, f).ExecuteBytes(context.Background(), []byte(searchPage)); err != nil {
		t.Fatal(err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestExecuteValidation(t *testing.T) {
	r := newRunner(kv.NewMemoryStore(), nil)
	if _, err := r.Execute(context.Background(), Options{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Execute() without source = %v", err)
	}
}

func TestNavigateWithoutContainer(t *testing.T) {
	r := newRunner(kv.NewMemoryStore(), nil)
	_, err := r.ExecuteBytes(context.Background(), []byte(`<html><body><p>nothing</p></body></html>`), page2)
	if !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("Execute() = %v, want INVALID_DOCUMENT", err)
	}
}

func TestSessionActivate(t *testing.T) {
	ctx := context.Background()
	r := newRunner(kv.NewMemoryStore(), &fetchCounter{})
	sess, err := r.Open(ctx, strings.NewReader(searchPage))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	sess.Settle(ctx)

	id := starcache.MustParseRepoID("golang/go")
	for n := 1; n <= 3; n++ {
		got, err := sess.Activate(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if want := starcache.Statuses[n%3]; got != want {
			t.Errorf("activation %d = %s, want %s", n, got, want)
		}
		if persisted := r.Cache.Status(ctx, id); persisted != got {
			t.Errorf("persisted = %s, want %s", persisted, got)
		}
	}
}

func TestStartedSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newRunner(kv.NewMemoryStore(), &fetchCounter{})
	sess, err := r.Open(ctx, strings.NewReader(searchPage))
	if err != nil {
		t.Fatal(err)
	}
	sess.Start(ctx)
	defer sess.Close()

	sess.Settle(ctx)
	if got := len(sess.Entries(ctx)); got != 2 {
		t.Fatalf("Entries() = %d, want 2", got)
	}

	if err := sess.Navigate(ctx, page2); err != nil {
		t.Fatal(err)
	}
	sess.Settle(ctx)

	entries := sess.Entries(ctx)
	if len(entries) != 2 || entries[0].Repo.String() != "charmbracelet/log" {
		t.Errorf("Entries() after navigation = %+v", entries)
	}

	status, err := sess.Activate(ctx, starcache.MustParseRepoID("charmbracelet/log"))
	if err != nil || status != starcache.StatusConfirmed {
		t.Errorf("Activate() = %s, %v", status, err)
	}

	var b strings.Builder
	if err := sess.Render(ctx, &b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), `data-status="confirmed"`) {
		t.Error("rendered page lacks the confirmed control")
	}
}

func TestUnwatchedPageStillScans(t *testing.T) {
	ctx := context.Background()
	cache := starcache.New(starcache.Options{Store: kv.NewMemoryStore(), Fetcher: &fetchCounter{}})
	r := NewRunner(cache, Selectors{Root: "#does-not-exist"}, nil)

	sess, err := r.Open(ctx, strings.NewReader(searchPage))
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	sess.Settle(ctx)

	if sess.Watched() {
		t.Error("Watched() = true without a content root")
	}
	if got := len(sess.Entries(ctx)); got != 2 {
		t.Errorf("Entries() = %d", got)
	}
	if res := sess.Scan(ctx); res.Existing != 2 || res.Annotated != 0 {
		t.Errorf("manual Scan() = %+v", res)
	}
}
