//go:build integration

package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/starmark/pkg/kv"
	"github.com/matzehuels/starmark/pkg/kv/kvtest"
)

func TestStore_Integration(t *testing.T) {
	addr := os.Getenv("STARMARK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STARMARK_TEST_REDIS_ADDR not set")
	}

	kvtest.Run(t, func(t *testing.T) kv.Store {
		// A fresh prefix per subtest gives every run an empty keyspace.
		s, err := New(context.Background(), Config{Addr: addr, Prefix: "starmark-test:" + uuid.NewString() + ":"})
		require.NoError(t, err)
		return s
	})
}
