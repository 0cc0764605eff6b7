package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNewDataplaneRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewDataplane(reg)

	d.NoRoute.Inc()
	d.NoRoute.Inc()
	d.NaksSent.WithLabelValues("1").Inc()

	require.Equal(t, 2.0, counterValue(t, d.NoRoute))
	require.Equal(t, 1.0, counterValue(t, d.NaksSent.WithLabelValues("1")))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNewDataplaneWithNilRegistererDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		d := NewDataplane(nil)
		d.CacheHits.Inc()
	})
}
