package indexmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sushant-115/kurodb/core/indexing/bptree"
	"github.com/sushant-115/kurodb/core/kv"
	"github.com/sushant-115/kurodb/pkg/telemetry"
)

// --- Test Helpers ---

// setupManager builds a manager over a fresh tree with telemetry
// disabled, which exercises the noop tracer and meter paths.
func setupManager(t *testing.T) *OrderedIndexManager {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	tree, err := bptree.New[kv.String, kv.String](9, logger)
	require.NoError(t, err)

	tel, shutdown, err := telemetry.New(telemetry.Config{Enabled: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	return NewOrderedIndexManager(tree, tel, logger)
}

// --- Test Cases ---

// TestOrderedIndexManager_RoundTrip drives Put, Get and Delete through
// the instrumented surface and checks the index state after each call.
func TestOrderedIndexManager_RoundTrip(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	require.Equal(t, "bptree", m.Name())
	require.Zero(t, m.Len())

	require.NoError(t, m.Put(ctx, "alpha", []byte("one")))
	require.NoError(t, m.Put(ctx, "beta", []byte("two")))
	require.Equal(t, 2, m.Len())

	value, found := m.Get(ctx, "alpha")
	require.True(t, found)
	require.Equal(t, []byte("one"), value)

	_, found = m.Get(ctx, "gamma")
	require.False(t, found)

	require.True(t, m.Delete(ctx, "alpha"))
	require.False(t, m.Delete(ctx, "alpha"), "second delete must miss")
	require.Equal(t, 1, m.Len())

	_, found = m.Get(ctx, "alpha")
	require.False(t, found)
}

// TestOrderedIndexManager_PutOverwrites confirms the manager exposes the
// tree's upsert semantics unchanged.
func TestOrderedIndexManager_PutOverwrites(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "key", []byte("old")))
	require.NoError(t, m.Put(ctx, "key", []byte("new")))
	require.Equal(t, 1, m.Len())

	value, found := m.Get(ctx, "key")
	require.True(t, found)
	require.Equal(t, []byte("new"), value)
}
