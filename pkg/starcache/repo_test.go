package starcache

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/starmark/pkg/errors"
)

func TestParseRepoID(t *testing.T) {
	tests := []struct {
		in      string
		want    RepoID
		wantErr bool
	}{
		{"octocat/Hello-World", RepoID{"octocat", "Hello-World"}, false},
		{"  a/b  ", RepoID{"a", "b"}, false},
		{"golang/go", RepoID{"golang", "go"}, false},
		{"", RepoID{}, true},
		{"noslash", RepoID{}, true},
		{"a/b/c", RepoID{}, true},
		{"/b", RepoID{}, true},
		{"a/", RepoID{}, true},
		{"a b/c", RepoID{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepoID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepoID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidRepo) {
				t.Errorf("error code = %s, want INVALID_REPO", errors.GetCode(err))
			}
			if got != tt.want {
				t.Errorf("ParseRepoID(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepoIDText(t *testing.T) {
	id := MustParseRepoID("octocat/Hello-World")
	if id.String() != "octocat/Hello-World" {
		t.Errorf("String() = %q", id.String())
	}

	data, err := json.Marshal(map[RepoID]int{id: 1})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"octocat/Hello-World":1}` {
		t.Errorf("marshal = %s", data)
	}

	var back map[RepoID]int
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back[id] != 1 {
		t.Errorf("unmarshal = %v", back)
	}
	if (RepoID{}).IsZero() != true || id.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestStatusCycle(t *testing.T) {
	// Activating the control N times from unset lands on Statuses[N%3].
	s := StatusUnset
	for n := 1; n <= 7; n++ {
		s = s.Next()
		if want := Statuses[n%3]; s != want {
			t.Errorf("after %d activations status = %s, want %s", n, s, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"", StatusUnset, false},
		{"unset", StatusUnset, false},
		{"Confirmed", StatusConfirmed, false},
		{" rejected ", StatusRejected, false},
		{"maybe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidStatus) {
			t.Errorf("ParseStatus(%q) code = %s", tt.in, errors.GetCode(err))
		}
	}
}

func TestStatusSymbols(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Statuses {
		seen[s.Symbol()] = true
	}
	if len(seen) != 3 {
		t.Errorf("symbols are not distinct: %v", seen)
	}
	if Status("").String() != "unset" {
		t.Errorf("zero Status String() = %q", Status("").String())
	}
}
