package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Roemello4/holochain/gossip"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gossip.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testSpace() gossip.Space {
	var s gossip.Space
	copy(s[:], []byte("boltstore-space"))
	return s
}

func TestStoreAndQueryAgentInfoRoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	space := testSpace()

	var agent gossip.Agent
	agent[0] = 7
	info := gossip.AgentInfoSigned{
		Agent:     agent,
		Space:     space,
		Arc:       gossip.ArcInterval{Start: 0, Length: gossip.FullArcLength},
		Cert:      gossip.NewPeerCert([]byte("peer-a")),
		Signature: []byte("sig-a"),
	}
	require.NoError(t, store.StoreAgentInfo(ctx, info))

	got, err := store.QueryAgentInfo(ctx, space)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, info, got[0])
}

func TestStoreAndFetchOpDataRoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	space := testSpace()

	var hash gossip.OpHash
	hash[0] = 5
	op := gossip.OpPayload{Hash: hash, Data: []byte("payload")}
	require.NoError(t, store.StoreOpData(ctx, space, op))

	hashes, _, hasMore, err := store.QueryOpHashes(ctx, space, nil, gossip.TimeWindow{}, 0, false)
	require.NoError(t, err)
	require.True(t, hasMore)
	require.Contains(t, hashes, hash)

	payloads, err := store.FetchOpData(ctx, space, nil, []gossip.OpHash{hash})
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	require.Equal(t, op, payloads[0])
}

func TestMetricsRoundTripAndFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var agent gossip.Agent
	agent[0] = 9
	now := time.Now()
	require.NoError(t, store.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.QuickGossip, At: now}))
	require.NoError(t, store.PutMetricDatum(ctx, gossip.MetricDatum{Agent: agent, Kind: gossip.ConnectError, At: now.Add(time.Second)}))

	kind := gossip.ConnectError
	got, err := store.QueryMetrics(ctx, gossip.MetricQuery{Kind: &kind})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, gossip.ConnectError, got[0].Kind)
}
