// Package kvtest provides a conformance suite that every kv.Store backend
// runs from its own tests.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/starmark/pkg/kv"
)

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) kv.Store

// Run exercises the kv.Store contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		got, err := s.Get(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, got)
		_, present := got["missing"]
		assert.False(t, present, "missing keys must be absent, not nil")
	})

	t.Run("SetGet", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, map[string][]byte{
			"starCounts":   []byte(`{"octocat/Hello-World":{"stars":1500}}`),
			"githubApiKey": []byte("secret"),
		}))

		got, err := s.Get(ctx, "starCounts", "githubApiKey", "other")
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, `{"octocat/Hello-World":{"stars":1500}}`, string(got["starCounts"]))
		assert.Equal(t, "secret", string(got["githubApiKey"]))
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, map[string][]byte{"k": []byte("v1")}))
		require.NoError(t, s.Set(ctx, map[string][]byte{"k": []byte("v2")}))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got["k"]))
	})

	t.Run("EmptyValue", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, map[string][]byte{"k": {}}))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		_, present := got["k"]
		assert.True(t, present, "empty values are still present")
	})

	t.Run("Remove", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
		require.NoError(t, s.Remove(ctx, "a", "never-set"))

		got, err := s.Get(ctx, "a", "b")
		require.NoError(t, err)
		assert.NotContains(t, got, "a")
		assert.Equal(t, "2", string(got["b"]))
	})

	t.Run("JSONHelpers", func(t *testing.T) {
		s := open(t)
		defer s.Close()
		ctx := context.Background()

		type entry struct {
			Stars int `json:"stars"`
		}
		require.NoError(t, kv.SetJSON(ctx, s, "agg", map[string]entry{"o/r": {Stars: 7}}))

		var got map[string]entry
		ok, err := kv.GetJSON(ctx, s, "agg", &got)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 7, got["o/r"].Stars)

		ok, err = kv.GetJSON(ctx, s, "nope", &got)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Closed", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Close())

		_, err := s.Get(context.Background(), "k")
		assert.True(t, errors.Is(err, kv.ErrClosed), "Get after Close = %v, want ErrClosed", err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, s.Set(ctx, map[string][]byte{"k": []byte("v")}))
	})
}
