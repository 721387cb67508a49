package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Roemello4/holochain/gossip"
)

func TestPutMetricDatumMarksMeterAndLogsDatum(t *testing.T) {
	tel := New()
	ctx := context.Background()

	var agent gossip.Agent
	agent[0] = 3
	now := time.Now()

	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.QuickGossip, At: now}))
	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.ConnectError, At: now}))

	meter, ok := tel.Registry().Get("gossip/QuickGossip").(interface{ Count() int64 })
	require.True(t, ok)
	require.EqualValues(t, 1, meter.Count())
}

func TestQueryMetricsFiltersByKind(t *testing.T) {
	tel := New()
	ctx := context.Background()

	var agent gossip.Agent
	agent[0] = 9
	now := time.Now()

	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.QuickGossip, At: now}))
	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.SlowGossip, At: now.Add(time.Second)}))
	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.ConnectError, At: now.Add(2 * time.Second)}))

	kind := gossip.SlowGossip
	got, err := tel.QueryMetrics(ctx, gossip.MetricQuery{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, gossip.SlowGossip, got[0].Kind)
}

func TestQueryMetricsFiltersBySince(t *testing.T) {
	tel := New()
	ctx := context.Background()

	var agent gossip.Agent
	base := time.Now()

	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.QuickGossip, At: base}))
	require.NoError(t, tel.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.QuickGossip, At: base.Add(time.Minute)}))

	got, err := tel.QueryMetrics(ctx, gossip.MetricQuery{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].At.After(base))
}
