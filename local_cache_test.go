package tiercache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalCache_BasicOperations(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache()

	require.Equal(t, LOCAL, c.Type())
	require.Equal(t, STRONG, c.ConsistencyModel())

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Put(ctx, "k", []byte("v")))
	v, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, c.Put(ctx, "k", nil))
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestLocalCache_Replace(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache()
	require.NoError(t, c.Put(ctx, "k", []byte("x")))

	ok, err := c.Replace(ctx, "k", []byte("wrong"), []byte("z"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.Replace(ctx, "k", []byte("x"), []byte("z"))
	require.NoError(t, err)
	require.True(t, ok)
}
