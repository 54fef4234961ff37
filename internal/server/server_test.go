package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/starmark/pkg/github"
	"github.com/matzehuels/starmark/pkg/kv"
	"github.com/matzehuels/starmark/pkg/notify"
	"github.com/matzehuels/starmark/pkg/observability"
	"github.com/matzehuels/starmark/pkg/pipeline"
	"github.com/matzehuels/starmark/pkg/starcache"
)

const searchPage = `<html><body><div data-testid="results-list">
<div class="search-title"><a title="octocat/Hello-World greeting">octocat/Hello-World</a></div>
</div></body></html>`

type fixture struct {
	srv      *httptest.Server
	api      *httptest.Server
	apiHits  *atomic.Int32
	store    *kv.MemoryStore
	notices  *notify.Recorder
	counters *observability.Counters
}

func newFixture(t *testing.T, apiStatus int) *fixture {
	t.Helper()
	hits := &atomic.Int32{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if apiStatus != http.StatusOK {
			w.WriteHeader(apiStatus)
			return
		}
		w.Write([]byte(`{"stargazers_count":1500}`))
	}))
	t.Cleanup(api.Close)

	notices := &notify.Recorder{}
	counters := observability.NewCounters()
	observability.SetCacheHooks(counters)
	t.Cleanup(observability.Reset)

	store := kv.NewMemoryStore()
	client := github.NewClient(github.Options{BaseURL: api.URL, Notifier: notices})
	cache := starcache.New(starcache.Options{Store: store, Fetcher: client})
	runner := pipeline.NewRunner(cache, pipeline.Selectors{}, nil)

	s := New(Options{Runner: runner, Counters: counters, Notices: notices})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, api: api, apiHits: hits, store: store, notices: notices, counters: counters}
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	resp, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAnnotateBody(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	resp, body := f.do(t, http.MethodPost, "/annotate", strings.NewReader(searchPage))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Starmark-Annotated"))
	assert.Contains(t, string(body), "⭐ 1500")
	assert.Contains(t, string(body), `button.starmark-status`)
	assert.Less(t, strings.Index(string(body), "<script>"), strings.Index(string(body), "</body>"))
}

func TestAnnotateURL(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchPage))
	}))
	defer upstream.Close()

	resp, body := f.do(t, http.MethodGet, "/annotate?url="+upstream.URL, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "github-star-counter")

	resp, _ = f.do(t, http.MethodGet, "/annotate?url=file:///etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnnotateURLAllowList(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "http://localhost:1/elsewhere", http.StatusFound)
			return
		}
		w.Write([]byte(searchPage))
	}))
	defer upstream.Close()

	cache := starcache.New(starcache.Options{Store: kv.NewMemoryStore()})
	serve := func(allow ...string) *httptest.Server {
		s := New(Options{Runner: pipeline.NewRunner(cache, pipeline.Selectors{}, nil), AllowHosts: allow})
		srv := httptest.NewServer(s.Handler())
		t.Cleanup(srv.Close)
		return srv
	}
	get := func(srv *httptest.Server, target string) int {
		resp, err := http.Get(srv.URL + "/annotate?url=" + target)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	githubOnly := serve("github.com")
	assert.Equal(t, http.StatusBadRequest, get(githubOnly, upstream.URL))
	assert.Zero(t, hits.Load(), "a refused host must not be fetched")

	loopback := serve("127.0.0.1")
	assert.Equal(t, http.StatusOK, get(loopback, upstream.URL))
	assert.Equal(t, http.StatusBadGateway, get(loopback, upstream.URL+"/moved"))

	assert.Equal(t, http.StatusOK, get(serve("*"), upstream.URL))
}

func TestHostAllowed(t *testing.T) {
	s := &Server{allow: []string{"github.com", ".example.org"}}
	tests := []struct {
		url  string
		want bool
	}{
		{"https://github.com/search?q=x", true},
		{"https://GitHub.com/", true},
		{"https://gist.github.com/", true},
		{"https://github.com:8443/", true},
		{"https://notgithub.com/", false},
		{"https://github.com.evil.io/", false},
		{"http://www.example.org/", true},
		{"http://127.0.0.1/", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.url)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.hostAllowed(u), tt.url)
	}
	assert.True(t, (&Server{}).hostAllowed(&url.URL{Host: "anything"}))
}

func TestAnnotateEmptyBody(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	resp, _ := f.do(t, http.MethodPost, "/annotate", strings.NewReader("  "))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusLifecycle(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	// No entry yet: status reads unset, cycling is not possible.
	resp, body := f.do(t, http.MethodGet, "/status/octocat/Hello-World", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"repo":"octocat/Hello-World","status":"unset"}`, string(body))

	resp, _ = f.do(t, http.MethodPost, "/status/octocat/Hello-World/cycle", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/stars/octocat/Hello-World", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"repo":"octocat/Hello-World","stars":1500}`, string(body))

	for _, want := range []string{"confirmed", "rejected", "unset"} {
		resp, body = f.do(t, http.MethodPost, "/status/octocat/Hello-World/cycle", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got statusResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, want, got.Status)
	}

	resp, _ = f.do(t, http.MethodPut, "/status/octocat/Hello-World", strings.NewReader(`{"status":"rejected"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, body = f.do(t, http.MethodGet, "/status/octocat/Hello-World", nil)
	assert.Contains(t, string(body), `"rejected"`)

	resp, _ = f.do(t, http.MethodPut, "/status/octocat/Hello-World", strings.NewReader(`{"status":"maybe"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, int32(1), f.apiHits.Load())
}

func TestInvalidRepo(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	resp, body := f.do(t, http.MethodGet, "/stars/bad%20owner/x", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "INVALID_REPO")
}

func TestStarsUnavailable(t *testing.T) {
	f := newFixture(t, http.StatusForbidden)
	resp, _ := f.do(t, http.MethodGet, "/stars/a/b", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	_, body := f.do(t, http.MethodGet, "/debug/stats", nil)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Len(t, stats.Notices, 1)
	assert.Equal(t, notify.KindRateLimited, stats.Notices[0].Kind)
}

func TestDebugCache(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.do(t, http.MethodGet, "/stars/a/b", nil)

	resp, body := f.do(t, http.MethodGet, "/debug/cache", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap starcache.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, 1500, snap.Local["a/b"])
	assert.Equal(t, 1500, snap.Persistent["a/b"].Stars)

	resp, _ = f.do(t, http.MethodDelete, "/debug/cache", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = f.do(t, http.MethodGet, "/debug/cache", nil)
	var cleared starcache.Snapshot
	require.NoError(t, json.Unmarshal(body, &cleared))
	assert.Empty(t, cleared.Persistent)
	assert.Empty(t, cleared.Local)
	assert.Equal(t, 0, f.store.Len())
}

func TestInjectScript(t *testing.T) {
	out := injectScript([]byte("<html><body><p>x</p></body></html>"))
	assert.True(t, bytes.HasSuffix(out, []byte("</script></body></html>")))

	out = injectScript([]byte("<p>fragment</p>"))
	assert.True(t, bytes.HasPrefix(out, []byte("<p>fragment</p><script>")))
}

func TestControlScriptCyclesBeforePersisting(t *testing.T) {
	table := newControlTable()
	assert.Equal(t, map[string]string{
		"unset":     "confirmed",
		"confirmed": "rejected",
		"rejected":  "unset",
	}, table.Next)
	assert.Equal(t, "✓", table.Symbol["confirmed"])
	assert.Equal(t, "#cf222e", table.Color["rejected"])

	encoded, err := json.Marshal(table)
	require.NoError(t, err)
	assert.Contains(t, controlScript, string(encoded))

	restyle := strings.Index(controlScript, "btn.style.color = table.color[next]")
	persist := strings.Index(controlScript, "fetch(")
	require.True(t, restyle >= 0 && persist >= 0)
	assert.Less(t, restyle, persist, "the control must be restyled before the write is sent")
	assert.Contains(t, controlScript, `method: "PUT"`)
	assert.NotContains(t, controlScript, "/cycle")
}

func TestListenAndServe(t *testing.T) {
	cache := starcache.New(starcache.Options{Store: kv.NewMemoryStore()})
	s := New(Options{Runner: pipeline.NewRunner(cache, pipeline.Selectors{}, nil)})

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0", ready) }()

	addr := <-ready
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
