package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/starcache"
)

func TestOpenSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(resultsPage), 0o644); err != nil {
		t.Fatal(err)
	}
	rc, err := openSource(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != resultsPage {
		t.Error("file contents differ")
	}

	if _, err := openSource(context.Background(), filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Error("openSource() on a missing file succeeded")
	}
}

func TestOpenSourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), appName+"/") {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		io.WriteString(w, resultsPage)
	}))
	defer srv.Close()

	rc, err := openSource(context.Background(), srv.URL+"/search")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != resultsPage {
		t.Error("fetched page differs")
	}

	_, err = openSource(context.Background(), srv.URL+"/missing")
	if !errors.Is(err, errors.ErrCodeRemoteStatus) || errors.StatusCode(err) != http.StatusNotFound {
		t.Errorf("openSource() = %v, want REMOTE_STATUS 404", err)
	}
}

func TestReadFragments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page2.html")
	if err := os.WriteFile(path, []byte("<div>two</div>"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readFragments([]string{"<div>one</div>", "@" + path})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "<div>one</div>" || got[1] != "<div>two</div>" {
		t.Errorf("readFragments() = %q", got)
	}

	if _, err := readFragments([]string{"@" + path + ".missing"}); err == nil {
		t.Error("readFragments() with a missing file succeeded")
	}
}

func testSnapshot() starcache.Snapshot {
	return starcache.Snapshot{
		Local: map[string]int{"octocat/Hello-World": 1500},
		Persistent: map[string]starcache.Entry{
			"octocat/Hello-World": {Stars: 1500, Status: starcache.StatusConfirmed, Timestamp: 1700000000000},
			"golang/go":           {Stars: 120000, Status: starcache.StatusUnset, Timestamp: 1700000000000},
		},
	}
}

func TestWriteSnapshotJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSnapshot(&buf, testSnapshot(), formatJSON); err != nil {
		t.Fatal(err)
	}
	var got starcache.Snapshot
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Persistent["octocat/Hello-World"].Status != starcache.StatusConfirmed {
		t.Errorf("decoded = %+v", got)
	}
}

func TestWriteSnapshotYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSnapshot(&buf, testSnapshot(), formatYAML); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if _, ok := got["persistent"]; !ok {
		t.Errorf("YAML lacks the persistent tier:\n%s", buf.String())
	}
}

func TestWriteSnapshotTable(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSnapshot(&buf, testSnapshot(), formatTable); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"golang/go", "octocat/Hello-World", "120000", "✓ confirmed"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := writeSnapshot(&buf, starcache.Snapshot{}, formatTable); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Cache is empty") {
		t.Errorf("empty table = %q", buf.String())
	}
}

func TestWriteSnapshotUnknownFormat(t *testing.T) {
	err := writeSnapshot(io.Discard, testSnapshot(), "xml")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("writeSnapshot(xml) = %v", err)
	}
}
