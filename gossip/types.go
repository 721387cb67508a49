package gossip

import "time"

// AgentArc pairs an agent with the arc it claims, the shape
// QueryGossipAgents and QueryOpHashes deal in.
type AgentArc struct {
	Agent Agent
	Arc   ArcInterval
}

// TimeWindow is a half-open millisecond window, (start_ms, end_ms).
type TimeWindow struct {
	StartMs uint64
	EndMs   uint64
}

// FullTimeWindow is the implicit window used for op queries during a
// round: from the dawn of time through now.
func FullTimeWindow(now time.Time) TimeWindow {
	return TimeWindow{StartMs: 0, EndMs: uint64(now.UnixNano() / int64(time.Millisecond))}
}

// PeerDensity summarizes how crowded a region of the keyspace is, used
// by QueryPeerDensity to inform arc-sizing decisions made above this
// engine; the engine itself only forwards the value.
type PeerDensity struct {
	// NumPeers is the estimated number of peers claiming the queried arc.
	NumPeers int
	// Estimate is the fractional coverage of the arc the queried peer
	// represents (1/NumPeers for a uniform estimate).
	Estimate float64
}

// MetricKind enumerates the PutMetricDatum event kinds.
type MetricKind uint8

const (
	QuickGossip MetricKind = iota
	SlowGossip
	ConnectError
)

func (k MetricKind) String() string {
	switch k {
	case QuickGossip:
		return "QuickGossip"
	case SlowGossip:
		return "SlowGossip"
	case ConnectError:
		return "ConnectError"
	default:
		return "Unknown"
	}
}

// MetricDatum is one point recorded through put_metric_datum.
type MetricDatum struct {
	Agent Agent
	Kind  MetricKind
	At    time.Time
}

// MetricQuery filters query_metrics results. A nil Kind or zero Since
// means "no filter" on that dimension.
type MetricQuery struct {
	Agent *Agent
	Kind  *MetricKind
	Since time.Time
}

// Matches reports whether d satisfies q.
func (q MetricQuery) Matches(d MetricDatum) bool {
	if q.Agent != nil && *q.Agent != d.Agent {
		return false
	}
	if q.Kind != nil && *q.Kind != d.Kind {
		return false
	}
	if !q.Since.IsZero() && d.At.Before(q.Since) {
		return false
	}
	return true
}
