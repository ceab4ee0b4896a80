package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestAdapter_RecordsAgainstRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "tiercache", "test", nil)

	a.RecordGet(1_000_000, true)
	a.RecordGet(2_000_000, false)
	a.RecordSet(500_000)
	a.RecordDelete(500_000)
	a.RecordContentionAbort()
	a.RecordSelfEchoSuppressed()
	a.RecordChangeFeedLagMillis(42)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
