// Package kv defines the persistent key-value store that backs starmark's
// durable state: the star-count aggregate and the API credential.
//
// The contract mirrors a browser extension's storage area: values are opaque
// byte slices addressed by string keys, reads return only the keys that
// exist, and writes replace whole values. There are no partial updates and no
// compare-and-swap; callers that need read-modify-write do it themselves.
//
// Backends live in subpackages:
//
//   - [NewMemoryStore]: process memory, for tests and --store=memory
//   - kv/file: one JSON file per key under a directory (CLI default)
//   - kv/sqlite: a single SQLite table (modernc.org/sqlite, no cgo)
//   - kv/bolt: a bbolt bucket
//   - kv/redis: Redis strings under a key prefix
//   - kv/mongo: documents in a MongoDB collection
package kv

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("kv store is closed")

// ErrCorrupt is returned by Get when a backend cannot decode what it stored
// for a key. The record is left in place; Remove clears it.
var ErrCorrupt = errors.New("kv record is corrupt")

// Store is a durable string-keyed byte store.
type Store interface {
	// Get returns the values for the keys that exist. Missing keys are
	// absent from the result, never mapped to nil.
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)

	// Set writes every key in values, replacing existing values.
	Set(ctx context.Context, values map[string][]byte) error

	// Remove deletes the keys. Removing a missing key is not an error.
	Remove(ctx context.Context, keys ...string) error

	// Close releases the store's resources.
	Close() error
}

// GetJSON reads key and unmarshals it into v.
// It reports false with a nil error when the key does not exist.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	values, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	data, ok := values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, map[string][]byte{key: data})
}

// GetString reads key as a string. Missing keys yield "", false.
func GetString(ctx context.Context, s Store, key string) (string, bool, error) {
	values, err := s.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	data, ok := values[key]
	return string(data), ok, nil
}
