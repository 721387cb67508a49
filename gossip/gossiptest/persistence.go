// Package gossiptest provides in-memory test doubles for gossip.Persistence
// and gossip.Transport. The Store double is used by the two-node scenario
// tests (gossip/scenarios_test.go); both are available to any caller that
// wants to exercise gossip.Manager without a real store or transport.
package gossiptest

import (
	"context"
	"sync"

	"github.com/Roemello4/holochain/gossip"
)

// Store is an in-memory gossip.Persistence double. All operations are
// synchronous and guarded by a single mutex — enough to stand in for the
// persistence collaborator in tests, which the engine otherwise treats
// as an opaque service with its own concurrency discipline.
type Store struct {
	mu sync.Mutex

	agentInfo map[gossip.Space]map[[32]byte]gossip.AgentInfoSigned
	ops       map[gossip.Space]map[gossip.OpHash]gossip.OpPayload
	metrics   []gossip.MetricDatum
}

var _ gossip.Persistence = (*Store)(nil)

// NewStore constructs an empty double.
func NewStore() *Store {
	return &Store{
		agentInfo: make(map[gossip.Space]map[[32]byte]gossip.AgentInfoSigned),
		ops:       make(map[gossip.Space]map[gossip.OpHash]gossip.OpPayload),
	}
}

// Seed installs initial agent-info records, as a test fixture would via
// a real store's bootstrap.
func (s *Store) Seed(space gossip.Space, infos ...gossip.AgentInfoSigned) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, info := range infos {
		s.putAgentInfoLocked(space, info)
	}
}

// SeedOps installs op payloads directly, as a test fixture would via a
// real store's bootstrap, without going through a round.
func (s *Store) SeedOps(space gossip.Space, ops ...gossip.OpPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		s.putOpLocked(space, op)
	}
}

func (s *Store) putAgentInfoLocked(space gossip.Space, info gossip.AgentInfoSigned) {
	bucket, ok := s.agentInfo[space]
	if !ok {
		bucket = make(map[[32]byte]gossip.AgentInfoSigned)
		s.agentInfo[space] = bucket
	}
	bucket[info.Agent] = info
}

func (s *Store) putOpLocked(space gossip.Space, op gossip.OpPayload) {
	bucket, ok := s.ops[space]
	if !ok {
		bucket = make(map[gossip.OpHash]gossip.OpPayload)
		s.ops[space] = bucket
	}
	bucket[op.Hash] = op
}

func (s *Store) QueryAgentInfo(ctx context.Context, space gossip.Space) ([]gossip.AgentInfoSigned, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.agentInfo[space]
	out := make([]gossip.AgentInfoSigned, 0, len(bucket))
	for _, info := range bucket {
		out = append(out, info)
	}
	return out, nil
}

func (s *Store) StoreAgentInfo(ctx context.Context, info gossip.AgentInfoSigned) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putAgentInfoLocked(info.Space, info)
	return nil
}

func (s *Store) QueryOpHashes(ctx context.Context, space gossip.Space, agents []gossip.AgentArc, window gossip.TimeWindow, maxOps int, includeLimbo bool) ([]gossip.OpHash, gossip.TimeWindow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	within := func(loc uint32) bool {
		if len(agents) == 0 {
			return true
		}
		for _, aa := range agents {
			if aa.Arc.Contains(loc) {
				return true
			}
		}
		return false
	}
	var out []gossip.OpHash
	for h := range s.ops[space] {
		if !within(h.Location()) {
			continue
		}
		out = append(out, h)
		if maxOps > 0 && len(out) >= maxOps {
			break
		}
	}
	return out, window, len(out) > 0, nil
}

func (s *Store) FetchOpData(ctx context.Context, space gossip.Space, agents []gossip.Agent, hashes []gossip.OpHash) ([]gossip.OpPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.ops[space]
	out := make([]gossip.OpPayload, 0, len(hashes))
	for _, h := range hashes {
		if op, ok := bucket[h]; ok {
			out = append(out, op)
		}
	}
	return out, nil
}

func (s *Store) StoreOpData(ctx context.Context, space gossip.Space, op gossip.OpPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putOpLocked(space, op)
	return nil
}

func (s *Store) QueryGossipAgents(ctx context.Context, space gossip.Space, agents []gossip.Agent, sinceMs, untilMs uint64, arcs gossip.ArcSet) ([]gossip.AgentArc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[gossip.Agent]bool, len(agents))
	for _, a := range agents {
		wanted[a] = true
	}
	var out []gossip.AgentArc
	for _, info := range s.agentInfo[space] {
		if len(agents) > 0 && !wanted[info.Agent] {
			continue
		}
		if !arcs.Empty() && !arcs.Contains(info.Arc.Start) {
			continue
		}
		out = append(out, gossip.AgentArc{Agent: info.Agent, Arc: info.Arc})
	}
	return out, nil
}

func (s *Store) QueryPeerDensity(ctx context.Context, space gossip.Space, dhtArc gossip.ArcInterval) (gossip.PeerDensity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, info := range s.agentInfo[space] {
		if dhtArc.Contains(info.Arc.Start) {
			n++
		}
	}
	density := gossip.PeerDensity{NumPeers: n}
	if n > 0 {
		density.Estimate = 1.0 / float64(n)
	}
	return density, nil
}

func (s *Store) PutMetricDatum(ctx context.Context, datum gossip.MetricDatum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, datum)
	return nil
}

func (s *Store) QueryMetrics(ctx context.Context, query gossip.MetricQuery) ([]gossip.MetricDatum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []gossip.MetricDatum
	for _, d := range s.metrics {
		if query.Matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) SignNetworkData(ctx context.Context, space gossip.Space, agent gossip.Agent, data []byte) ([]byte, error) {
	sig := make([]byte, len(data))
	copy(sig, data)
	return sig, nil
}
