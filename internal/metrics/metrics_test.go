package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.NoncesIssued.Inc()
	m.Logins.WithLabelValues("wallet", "success").Inc()
	m.Logins.WithLabelValues("wallet", "success").Inc()
	m.SweepFailures.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NoncesIssued))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("wallet", "success")))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "warden_nonces_issued_total")
	assert.Contains(t, names, "warden_logins_total")
	assert.Contains(t, names, "warden_sweep_failures_total")
}

func TestNewPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
