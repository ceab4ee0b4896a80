package wrapper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	data, err := Wrap("node-123", []byte("hello"))
	require.NoError(t, err)

	sourceID, payload, err := Unwrap(data)
	require.NoError(t, err)
	require.Equal(t, "node-123", sourceID)
	require.Equal(t, []byte("hello"), payload)
}

func TestWrapUnwrap_EmptySourceIDIsUnknownOrigin(t *testing.T) {
	data, err := Wrap("", []byte("x"))
	require.NoError(t, err)

	sourceID, payload, err := Unwrap(data)
	require.NoError(t, err)
	require.Equal(t, "", sourceID)
	require.Equal(t, []byte("x"), payload)
}

func TestWrap_DeterministicEncoding(t *testing.T) {
	a, err := Wrap("node-1", []byte("same"))
	require.NoError(t, err)
	b, err := Wrap("node-1", []byte("same"))
	require.NoError(t, err)
	require.Equal(t, a, b, "identical wrappers must encode identically for byte-equality comparisons")
}

func TestUnwrap_RejectsGarbage(t *testing.T) {
	_, _, err := Unwrap([]byte("not cbor"))
	require.Error(t, err)
}

func FuzzWrapUnwrap(f *testing.F) {
	f.Add("node-1", []byte("payload"))
	f.Add("", []byte{})
	f.Add("n", []byte{0x00, 0xff, 0x10})

	f.Fuzz(func(t *testing.T, sourceID string, payload []byte) {
		data, err := Wrap(sourceID, payload)
		if err != nil {
			t.Skip()
		}
		gotSource, gotPayload, err := Unwrap(data)
		require.NoError(t, err)
		require.Equal(t, sourceID, gotSource)
		require.Equal(t, payload, gotPayload)
	})
}
