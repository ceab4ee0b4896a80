package nearcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutIfAvailable_AdmitsWhenUncontended(t *testing.T) {
	nc := New(4)

	idx, tok := nc.TryOwn("k")
	ok := nc.PutIfAvailable(idx, tok, "k", []byte("v"))
	nc.ReleaseIfOwned(idx, tok)

	require.True(t, ok)
	v, found := nc.Get("k")
	require.True(t, found)
	require.Equal(t, []byte("v"), v)
}

// TestPutIfAvailable_RejectsRaceWithInvalidation models S3 from the
// testable-property scenarios: a fetch that races a concurrent invalidation
// must not admit its (possibly stale) value.
func TestPutIfAvailable_RejectsRaceWithInvalidation(t *testing.T) {
	nc := New(4)

	// T1 starts its miss-path fetch.
	idx, tok := nc.TryOwn("k")

	// Meanwhile an invalidation for the same key arrives and completes.
	invIdx, invTok := nc.TryOwn("k")
	nc.Remove("k")
	nc.ReleaseIfOwned(invIdx, invTok)

	// T1 resumes and attempts to admit its (now stale) fetched value.
	ok := nc.PutIfAvailable(idx, tok, "k", []byte("stale"))
	nc.ReleaseIfOwned(idx, tok)

	require.False(t, ok, "a value fetched before a concurrent invalidation must not be admitted")
	_, found := nc.Get("k")
	require.False(t, found)
}

func TestClear_UnderOwnAll(t *testing.T) {
	nc := New(4)

	idx, tok := nc.TryOwn("a")
	nc.PutIfAvailable(idx, tok, "a", []byte("1"))
	nc.ReleaseIfOwned(idx, tok)

	nc.OwnAll()
	nc.Clear()
	nc.ReleaseAll()

	require.Equal(t, 0, nc.Len())
}
