// Package credential stores the optional GitHub API key.
package credential

import (
	"context"
	"strings"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/kv"
)

// Key is the store key holding the API key.
const Key = "githubApiKey"

// Source yields the current API key. An empty string means unauthenticated.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed API key.
type Static string

// Token returns s.
func (s Static) Token(context.Context) (string, error) { return string(s), nil }

// Store reads and writes the API key in a kv.Store. The key is read on every
// call, so a change made through another process is picked up immediately.
type Store struct {
	kv       kv.Store
	override string
}

// NewStore returns a Store backed by s. A non-empty override takes
// precedence over the stored key (config file or STARMARK_GITHUB_TOKEN).
func NewStore(s kv.Store, override string) *Store {
	return &Store{kv: s, override: strings.TrimSpace(override)}
}

// Token returns the override if set, else the stored key, else "".
func (s *Store) Token(ctx context.Context) (string, error) {
	if s.override != "" {
		return s.override, nil
	}
	tok, _, err := kv.GetString(ctx, s.kv, Key)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStorage, err, "read %s", Key)
	}
	return strings.TrimSpace(tok), nil
}

// Stored returns the key held in the store, ignoring any override.
func (s *Store) Stored(ctx context.Context) (string, bool, error) {
	tok, ok, err := kv.GetString(ctx, s.kv, Key)
	if err != nil {
		return "", false, errors.Wrap(errors.ErrCodeStorage, err, "read %s", Key)
	}
	return tok, ok, nil
}

// Set saves token. An empty token removes the stored key.
func (s *Store) Set(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return s.Clear(ctx)
	}
	if err := s.kv.Set(ctx, map[string][]byte{Key: []byte(token)}); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "write %s", Key)
	}
	return nil
}

// Clear removes the stored key.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, Key); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "remove %s", Key)
	}
	return nil
}

// Mask hides all but the last four characters of token.
func Mask(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
