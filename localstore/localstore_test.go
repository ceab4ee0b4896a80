package localstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_PutGetRemove(t *testing.T) {
	s := New()

	_, found := s.Get("k")
	require.False(t, found)

	s.Put("k", []byte("v1"))
	v, found := s.Get("k")
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	s.Remove("k")
	_, found = s.Get("k")
	require.False(t, found)

	// Removing an absent key is not an error and does not panic.
	s.Remove("k")
}

func TestStore_Replace(t *testing.T) {
	s := New()

	require.False(t, s.Replace("k", []byte("x"), []byte("z")), "replace against absent key with non-nil old must fail")
	require.True(t, s.Replace("k", nil, []byte("x")), "replace with nil old against absent key inserts")

	require.False(t, s.Replace("k", []byte("wrong"), []byte("z")))
	require.True(t, s.Replace("k", []byte("x"), []byte("z")))
	v, _ := s.Get("k")
	require.Equal(t, []byte("z"), v)

	require.True(t, s.Replace("k", []byte("z"), nil), "nil new deletes on success")
	_, found := s.Get("k")
	require.False(t, found)
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Put("a", []byte("1"))
	s.Put("b", []byte("2"))
	require.Equal(t, 2, s.Len())

	s.Clear()
	require.Equal(t, 0, s.Len())
	_, found := s.Get("a")
	require.False(t, found)
}
