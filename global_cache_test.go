package tiercache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nearcache/tiercache/globalstore/memstore"
)

func TestGlobalCache_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	c := NewGlobalCache(memstore.NewClient(store, "node-a"))

	require.Equal(t, GLOBAL, c.Type())
	require.Equal(t, STRONG, c.ConsistencyModel())

	require.NoError(t, c.Put(ctx, "k", []byte("v")))
	v, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), v)

	ok, err := c.Replace(ctx, "k", []byte("v"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Remove(ctx, "k"))
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}
