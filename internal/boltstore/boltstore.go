// Package boltstore is a boltdb/bolt-backed implementation of
// gossip.Persistence: a concrete, embeddable store behind the engine's
// storage interface, picked because the persistence contract fits a
// single-file embedded KV store rather than a client/server database.
package boltstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/hex"

	bolt "github.com/boltdb/bolt"

	"github.com/Roemello4/holochain/gossip"
)

var (
	agentsBucket  = []byte("agents")
	opsBucket     = []byte("ops")
	metricsBucket = []byte("metrics")
)

// Store is a single bolt database holding every space's agent-info
// records and op payloads in per-space nested buckets, plus metric data
// in one top-level bucket.
type Store struct {
	db *bolt.DB
}

var _ gossip.Persistence = (*Store)(nil)

// Open creates or opens the bolt file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func spaceBucketName(space gossip.Space) []byte {
	return []byte(hex.EncodeToString(space[:]))
}

func (s *Store) spaceBucket(tx *bolt.Tx, writable bool) (*bolt.Bucket, func(gossip.Space) (*bolt.Bucket, error), error) {
	root, err := rootBucket(tx, writable)
	if err != nil {
		return nil, nil, err
	}
	get := func(space gossip.Space) (*bolt.Bucket, error) {
		if writable {
			return root.CreateBucketIfNotExists(spaceBucketName(space))
		}
		return root.Bucket(spaceBucketName(space)), nil
	}
	return root, get, nil
}

func rootBucket(tx *bolt.Tx, writable bool) (*bolt.Bucket, error) {
	if writable {
		return tx.CreateBucketIfNotExists([]byte("spaces"))
	}
	return tx.Bucket([]byte("spaces")), nil
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(raw []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(raw)).Decode(v)
}

// QueryAgentInfo returns every agent-info record stored for space.
func (s *Store) QueryAgentInfo(ctx context.Context, space gossip.Space) ([]gossip.AgentInfoSigned, error) {
	var out []gossip.AgentInfoSigned
	err := s.db.View(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, false)
		if err != nil {
			return err
		}
		sb, err := get(space)
		if err != nil || sb == nil {
			return err
		}
		agents := sb.Bucket(agentsBucket)
		if agents == nil {
			return nil
		}
		return agents.ForEach(func(_, v []byte) error {
			var info gossip.AgentInfoSigned
			if err := decode(v, &info); err != nil {
				return err
			}
			out = append(out, info)
			return nil
		})
	})
	return out, err
}

// StoreAgentInfo persists info under its Agent key, overwriting any prior
// record for the same agent: the most recently stored record wins,
// whatever its SignedAtMs.
func (s *Store) StoreAgentInfo(ctx context.Context, info gossip.AgentInfoSigned) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, true)
		if err != nil {
			return err
		}
		sb, err := get(info.Space)
		if err != nil {
			return err
		}
		agents, err := sb.CreateBucketIfNotExists(agentsBucket)
		if err != nil {
			return err
		}
		raw, err := encode(info)
		if err != nil {
			return err
		}
		return agents.Put(info.Agent[:], raw)
	})
}

// QueryOpHashes returns the hashes of stored ops whose location falls
// within one of agents' arcs. The time window is accepted for interface
// conformance but not applied: OpPayload carries no signing timestamp to
// filter on, matching gossip/gossiptest.Store's same simplification.
func (s *Store) QueryOpHashes(ctx context.Context, space gossip.Space, agents []gossip.AgentArc, window gossip.TimeWindow, maxOps int, includeLimbo bool) ([]gossip.OpHash, gossip.TimeWindow, bool, error) {
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
	err := s.db.View(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, false)
		if err != nil {
			return err
		}
		sb, err := get(space)
		if err != nil || sb == nil {
			return err
		}
		ops := sb.Bucket(opsBucket)
		if ops == nil {
			return nil
		}
		return ops.ForEach(func(k, _ []byte) error {
			var h gossip.OpHash
			copy(h[:], k)
			if !within(h.Location()) {
				return nil
			}
			out = append(out, h)
			if maxOps > 0 && len(out) >= maxOps {
				return errStopIteration
			}
			return nil
		})
	})
	if err == errStopIteration {
		err = nil
	}
	return out, window, len(out) > 0, err
}

// FetchOpData loads the payload bytes for hashes.
func (s *Store) FetchOpData(ctx context.Context, space gossip.Space, agents []gossip.Agent, hashes []gossip.OpHash) ([]gossip.OpPayload, error) {
	out := make([]gossip.OpPayload, 0, len(hashes))
	err := s.db.View(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, false)
		if err != nil {
			return err
		}
		sb, err := get(space)
		if err != nil || sb == nil {
			return err
		}
		ops := sb.Bucket(opsBucket)
		if ops == nil {
			return nil
		}
		for _, h := range hashes {
			raw := ops.Get(h[:])
			if raw == nil {
				continue
			}
			var op gossip.OpPayload
			if err := decode(raw, &op); err != nil {
				return err
			}
			out = append(out, op)
		}
		return nil
	})
	return out, err
}

// StoreOpData persists op under its hash.
func (s *Store) StoreOpData(ctx context.Context, space gossip.Space, op gossip.OpPayload) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, true)
		if err != nil {
			return err
		}
		sb, err := get(space)
		if err != nil {
			return err
		}
		ops, err := sb.CreateBucketIfNotExists(opsBucket)
		if err != nil {
			return err
		}
		raw, err := encode(op)
		if err != nil {
			return err
		}
		return ops.Put(op.Hash[:], raw)
	})
}

// QueryGossipAgents returns the (agent, arc) pairs from stored agent-info
// records, optionally filtered to a specific agent set and arc set.
func (s *Store) QueryGossipAgents(ctx context.Context, space gossip.Space, agents []gossip.Agent, sinceMs, untilMs uint64, arcs gossip.ArcSet) ([]gossip.AgentArc, error) {
	wanted := make(map[gossip.Agent]bool, len(agents))
	for _, a := range agents {
		wanted[a] = true
	}
	var out []gossip.AgentArc
	err := s.db.View(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, false)
		if err != nil {
			return err
		}
		sb, err := get(space)
		if err != nil || sb == nil {
			return err
		}
		bucket := sb.Bucket(agentsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var info gossip.AgentInfoSigned
			if err := decode(v, &info); err != nil {
				return err
			}
			if len(agents) > 0 && !wanted[info.Agent] {
				return nil
			}
			if sinceMs > 0 && info.SignedAtMs < sinceMs {
				return nil
			}
			if untilMs > 0 && info.SignedAtMs > untilMs {
				return nil
			}
			if !arcs.Empty() && !arcs.Contains(info.Arc.Start) {
				return nil
			}
			out = append(out, gossip.AgentArc{Agent: info.Agent, Arc: info.Arc})
			return nil
		})
	})
	return out, err
}

// QueryPeerDensity counts how many stored agents claim a point inside
// dhtArc, as a cheap proxy for how crowded that part of the keyspace is.
func (s *Store) QueryPeerDensity(ctx context.Context, space gossip.Space, dhtArc gossip.ArcInterval) (gossip.PeerDensity, error) {
	var density gossip.PeerDensity
	err := s.db.View(func(tx *bolt.Tx) error {
		_, get, err := s.spaceBucket(tx, false)
		if err != nil {
			return err
		}
		sb, err := get(space)
		if err != nil || sb == nil {
			return err
		}
		bucket := sb.Bucket(agentsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var info gossip.AgentInfoSigned
			if err := decode(v, &info); err != nil {
				return err
			}
			if dhtArc.Contains(info.Arc.Start) {
				density.NumPeers++
			}
			return nil
		})
	})
	if density.NumPeers > 0 {
		density.Estimate = 1.0 / float64(density.NumPeers)
	}
	return density, err
}

// PutMetricDatum appends datum to the store's metrics log, keyed by a
// monotonically increasing bolt sequence so QueryMetrics can iterate in
// insertion order. Metrics are not scoped to a space — MetricDatum is
// keyed by agent only — so they live in one top-level bucket rather than
// nested under the per-space "spaces" root.
func (s *Store) PutMetricDatum(ctx context.Context, datum gossip.MetricDatum) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(metricsBucket)
		if err != nil {
			return err
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		raw, err := encode(datum)
		if err != nil {
			return err
		}
		return bucket.Put(itob(seq), raw)
	})
}

// QueryMetrics returns every stored datum matching query.
func (s *Store) QueryMetrics(ctx context.Context, query gossip.MetricQuery) ([]gossip.MetricDatum, error) {
	var out []gossip.MetricDatum
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(metricsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, raw []byte) error {
			var datum gossip.MetricDatum
			if err := decode(raw, &datum); err != nil {
				return err
			}
			if query.Matches(datum) {
				out = append(out, datum)
			}
			return nil
		})
	})
	return out, err
}

// SignNetworkData is a placeholder signer: boltstore has no key material
// of its own, so it mirrors gossiptest.Store's identity "signature"
// rather than silently producing invalid records. A real deployment
// wires this to a proper key-management layer instead.
func (s *Store) SignNetworkData(ctx context.Context, space gossip.Space, agent gossip.Agent, data []byte) ([]byte, error) {
	sig := make([]byte, len(data))
	copy(sig, data)
	return sig, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

var errStopIteration = stopIteration{}

type stopIteration struct{}

func (stopIteration) Error() string { return "boltstore: iteration limit reached" }
