package gossip

import "context"

// Persistence is the external collaborator the engine relies on for
// everything it needs to read or write durable state. The engine never
// touches storage directly — every implementation (internal/boltstore,
// gossip/gossiptest's in-memory double) satisfies exactly this interface,
// so callers can swap in a test double without touching engine code.
type Persistence interface {
	// QueryAgentInfo returns every agent-info record this process holds
	// for space, regardless of arc — the basis for the local arc set
	// the state machine advertises in Initiate/Accept.
	QueryAgentInfo(ctx context.Context, space Space) ([]AgentInfoSigned, error)

	// StoreAgentInfo persists a record learned from a remote (via
	// MissingAgents) or produced locally.
	StoreAgentInfo(ctx context.Context, info AgentInfoSigned) error

	// QueryOpHashes returns the hashes of ops whose location falls within
	// one of the given agents' arcs inside window, up to maxOps, optionally
	// including ops still in limbo (not yet validated). A false bool
	// return means the store had nothing for this query and the window
	// should be treated as empty rather than an error.
	QueryOpHashes(ctx context.Context, space Space, agents []AgentArc, window TimeWindow, maxOps int, includeLimbo bool) ([]OpHash, TimeWindow, bool, error)

	// FetchOpData loads the bytes for the given hashes, scoped to agents
	// for authorization/locality the store may want to apply.
	FetchOpData(ctx context.Context, space Space, agents []Agent, hashes []OpHash) ([]OpPayload, error)

	// StoreOpData persists an op payload received from a remote via
	// MissingOps, ingesting it into local storage.
	StoreOpData(ctx context.Context, space Space, op OpPayload) error

	// QueryGossipAgents returns (agent, arc) pairs gossip should consider,
	// optionally restricted to a specific agent set, a signing-time
	// window, and an arc set — the agent set the state machine queries op
	// hashes for. (The initiation loop draws its candidates from
	// QueryAgentInfo.)
	QueryGossipAgents(ctx context.Context, space Space, agents []Agent, sinceMs, untilMs uint64, arcs ArcSet) ([]AgentArc, error)

	// QueryPeerDensity reports how crowded dhtArc is, for arc-sizing
	// decisions made above this engine.
	QueryPeerDensity(ctx context.Context, space Space, dhtArc ArcInterval) (PeerDensity, error)

	// PutMetricDatum and QueryMetrics record and retrieve the gossip
	// health signal (QuickGossip/SlowGossip/ConnectError).
	PutMetricDatum(ctx context.Context, datum MetricDatum) error
	QueryMetrics(ctx context.Context, query MetricQuery) ([]MetricDatum, error)

	// SignNetworkData produces a signature over data as agent, used when
	// the engine needs to mint a fresh AgentInfoSigned record.
	SignNetworkData(ctx context.Context, space Space, agent Agent, data []byte) ([]byte, error)
}
