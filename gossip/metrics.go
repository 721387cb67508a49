package gossip

import (
	"sync"
	"time"
)

// MaxHistory is the maximum amount of per-remote-peer history tracked.
const MaxHistory = 10

// maxTriggers is how many rounds RecordForceInitiate primes, and how high
// force_initiates is allowed to climb.
const maxTriggers uint8 = 2

// RoundOutcome is the result of the most recent gossip round for a peer.
type RoundOutcome struct {
	Success bool
	At      time.Time
}

// nodeInfo is the rolling history kept for one remote peer. Eviction is
// deliberately off-by-one: recordInstant trims only once a buffer
// exceeds MaxHistory, so a deque can hold up to MaxHistory+1 entries
// immediately after an insert.
type nodeInfo struct {
	errors         []time.Time
	initiates      []time.Time
	remoteRounds   []time.Time
	completeRounds []time.Time
	currentRound   bool
}

func recordInstant(buf []time.Time, now time.Time) []time.Time {
	if len(buf) > MaxHistory {
		buf = buf[1:]
	}
	return append(buf, now)
}

func back(buf []time.Time) (time.Time, bool) {
	if len(buf) == 0 {
		return time.Time{}, false
	}
	return buf[len(buf)-1], true
}

// isInitiateRound reports whether the most recent round for this node was
// one we initiated, by comparing the backs of initiates and
// remoteRounds.
func (n *nodeInfo) isInitiateRound() bool {
	remote, hasRemote := back(n.remoteRounds)
	initiate, hasInitiate := back(n.initiates)
	switch {
	case !hasRemote && !hasInitiate:
		return false
	case !hasRemote:
		return true
	case !hasInitiate:
		return false
	default:
		return initiate.After(remote)
	}
}

// Metrics is the per-remote-peer rolling history that advises target
// selection in the initiation loop.
type Metrics struct {
	mu            sync.Mutex
	nodes         map[PeerCert]*nodeInfo
	forceInitiate uint8
	triggers      uint8
	clock         func() time.Time
}

// NewMetrics constructs an empty ledger using the default MaxTriggers ceiling.
func NewMetrics() *Metrics {
	return NewMetricsWithTriggers(maxTriggers)
}

// NewMetricsWithTriggers constructs an empty ledger whose force_initiates
// ceiling is triggers, the value Manager threads in from Config.MaxTriggers.
func NewMetricsWithTriggers(triggers uint8) *Metrics {
	return &Metrics{
		nodes:    make(map[PeerCert]*nodeInfo),
		clock:    time.Now,
		triggers: triggers,
	}
}

func (m *Metrics) entry(cert PeerCert) *nodeInfo {
	n, ok := m.nodes[cert]
	if !ok {
		n = &nodeInfo{}
		m.nodes[cert] = n
	}
	return n
}

// RecordInitiate records that we have initiated a round with cert.
func (m *Metrics) RecordInitiate(cert PeerCert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.entry(cert)
	n.initiates = recordInstant(n.initiates, m.clock())
	n.currentRound = true
}

// RecordRemoteRound records that cert has initiated a round with us.
func (m *Metrics) RecordRemoteRound(cert PeerCert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.entry(cert)
	n.remoteRounds = recordInstant(n.remoteRounds, m.clock())
	n.currentRound = true
}

// RecordSuccess records a round with cert completing successfully.
func (m *Metrics) RecordSuccess(cert PeerCert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.entry(cert)
	n.completeRounds = recordInstant(n.completeRounds, m.clock())
	n.currentRound = false
	if n.isInitiateRound() && m.forceInitiate > 0 {
		m.forceInitiate--
	}
}

// RecordError records a round with cert ending in an error.
func (m *Metrics) RecordError(cert PeerCert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.entry(cert)
	n.errors = recordInstant(n.errors, m.clock())
	n.currentRound = false
}

// RecordForceInitiate arms the initiation loop to prefer any candidate
// for the next m.triggers rounds (the ceiling given to
// NewMetricsWithTriggers), regardless of freshness/cooldown.
func (m *Metrics) RecordForceInitiate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceInitiate = m.triggers
}

// LastSuccess returns the time of the latest successful round with cert,
// if any.
func (m *Metrics) LastSuccess(cert PeerCert) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[cert]
	if !ok {
		return time.Time{}, false
	}
	return back(n.completeRounds)
}

// IsCurrentRound reports whether cert is currently mid-round with us.
func (m *Metrics) IsCurrentRound(cert PeerCert) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[cert]
	return ok && n.currentRound
}

// LastOutcome returns the most recent Success or Error recorded for
// cert, chosen by comparing the backs of the two deques, or false if
// neither is present.
func (m *Metrics) LastOutcome(cert PeerCert) (RoundOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[cert]
	if !ok {
		return RoundOutcome{}, false
	}
	errAt, hasErr := back(n.errors)
	okAt, hasOk := back(n.completeRounds)
	switch {
	case hasErr && hasOk:
		if errAt.After(okAt) {
			return RoundOutcome{Success: false, At: errAt}, true
		}
		return RoundOutcome{Success: true, At: okAt}, true
	case hasErr:
		return RoundOutcome{Success: false, At: errAt}, true
	case hasOk:
		return RoundOutcome{Success: true, At: okAt}, true
	default:
		return RoundOutcome{}, false
	}
}

// ForcedInitiate reports whether at least one forced round is still
// outstanding.
func (m *Metrics) ForcedInitiate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forceInitiate > 0
}
