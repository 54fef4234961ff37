package credential

import (
	"context"
	"testing"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/kv"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	s := NewStore(mem, "")

	tok, err := s.Token(ctx)
	if err != nil || tok != "" {
		t.Fatalf("Token() on empty store = %q, %v", tok, err)
	}

	if err := s.Set(ctx, "  ghp_secret  "); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	tok, _ = s.Token(ctx)
	if tok != "ghp_secret" {
		t.Errorf("Token() = %q, want ghp_secret", tok)
	}

	raw, ok, _ := kv.GetString(ctx, mem, Key)
	if !ok || raw != "ghp_secret" {
		t.Errorf("stored %s = %q, %v", Key, raw, ok)
	}

	if err := s.Set(ctx, ""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if _, ok, _ := s.Stored(ctx); ok {
		t.Error("Set(\"\") should remove the stored key")
	}
}

func TestOverrideWins(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	_ = mem.Set(ctx, map[string][]byte{Key: []byte("stored")})

	s := NewStore(mem, "from-env")
	tok, _ := s.Token(ctx)
	if tok != "from-env" {
		t.Errorf("Token() = %q, want from-env", tok)
	}
	stored, ok, _ := s.Stored(ctx)
	if !ok || stored != "stored" {
		t.Errorf("Stored() = %q, %v", stored, ok)
	}
}

func TestClosedStore(t *testing.T) {
	mem := kv.NewMemoryStore()
	mem.Close()

	_, err := NewStore(mem, "").Token(context.Background())
	if !errors.Is(err, errors.ErrCodeStorage) {
		t.Errorf("Token() on closed store = %v, want STORAGE_ERROR", err)
	}
}

func TestMask(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"abc", "***"},
		{"ghp_12345678", "********5678"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("Static.Token() = %q, %v", tok, err)
	}
}
