package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:integrity").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:integrity")))
}

func TestOutOfBalanceGaugeIsAbsolute(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetOutOfBalance(-150)
	require.Equal(t, 150.0, testutil.ToFloat64(m.outOfBalance))
	m.SetOutOfBalance(0)
	require.Zero(t, testutil.ToFloat64(m.outOfBalance))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetOutOfBalance(3)
	m.EmailSent(true)
	require.NoError(t, m.Track("x").End(nil))
}
