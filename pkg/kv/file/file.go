// Package file implements kv.Store on the local filesystem.
//
// Each key is stored as its own JSON file. The filename is the SHA-256 of the
// key, fanned out into two-character subdirectories so a large store never
// puts too many files in one directory. Writes go to a temporary file that is
// renamed into place, so a crash never leaves a half-written value behind.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/matzehuels/starmark/pkg/kv"
)

// Store is a directory-backed kv.Store.
type Store struct {
	mu     sync.RWMutex
	dir    string
	closed bool
}

// record wraps a stored value with its key so files stay self-describing.
type record struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string { return s.dir }

// Get reads the keys that exist. A file that does not decode to a record for
// its key fails the read with kv.ErrCorrupt and stays on disk.
func (s *Store) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrClosed
	}

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		path := s.path(key)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}

		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w: %v", key, kv.ErrCorrupt, err)
		}
		if rec.Key != key {
			return nil, fmt.Errorf("decode %s: %w: record holds key %q", key, kv.ErrCorrupt, rec.Key)
		}
		if rec.Data == nil {
			rec.Data = []byte{}
		}
		out[key] = rec.Data
	}
	return out, nil
}

// Set writes every value atomically per key.
func (s *Store) Set(ctx context.Context, values map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}

	for key, value := range values {
		data, err := json.Marshal(record{Key: key, Data: value})
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		if err := writeAtomic(s.path(key), data); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

// Remove deletes the files for keys.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}

	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// Close marks the store closed; the files stay on disk.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// path converts a key to a file path.
// Uses the first 2 hash chars as subdirectory for distribution.
func (s *Store) path(key string) string {
	h := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(h[:])
	return filepath.Join(s.dir, hash[:2], hash[2:]+".json")
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ kv.Store = (*Store)(nil)
