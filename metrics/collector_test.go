package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/shenjiangwei/refheap"
	"github.com/shenjiangwei/refheap/metrics"
)

func TestCollectorReportsCurrentStats(t *testing.T) {
	m := refheap.New(512)
	h, err := m.AllocRef(32)
	require.NoError(t, err)
	_, err = m.SizeOf(h)
	require.NoError(t, err)

	c := metrics.NewCollector(m)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]*dto.MetricFamily{}
	for _, f := range families {
		found[f.GetName()] = f
	}

	usedBlocks, ok := found["refheap_used_blocks"]
	require.True(t, ok, "expected refheap_used_blocks family")
	require.Equal(t, float64(1), usedBlocks.Metric[0].GetGauge().GetValue())

	allocations, ok := found["refheap_allocations_total"]
	require.True(t, ok, "expected refheap_allocations_total family")
	require.Equal(t, float64(1), allocations.Metric[0].GetCounter().GetValue())
}
