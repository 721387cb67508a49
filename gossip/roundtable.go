package gossip

import (
	"sync"
	"time"

	set "gopkg.in/fatih/set.v0"
)

// initiateTarget is the peer we are currently courting: we have sent it
// an Initiate and are waiting for its Accept. It holds a RoundState of
// its own (created speculatively, before any Accept has arrived) that
// gets promoted into the round map once the matching Accept shows up.
type initiateTarget struct {
	cert  PeerCert
	state *RoundState
}

// RoundTable is the map PeerCert -> RoundState plus the single
// initiate_tgt slot. Every exported method takes the table's lock for
// its own short critical section and releases it before returning; no
// method performs I/O, so no critical section ever holds across a
// suspension.
type RoundTable struct {
	mu     sync.Mutex
	rounds map[PeerCert]*RoundState
	target *initiateTarget
}

// NewRoundTable constructs an empty table.
func NewRoundTable() *RoundTable {
	return &RoundTable{rounds: make(map[PeerCert]*RoundState)}
}

// Get returns the round state for cert, if one exists.
func (t *RoundTable) Get(cert PeerCert) (*RoundState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.rounds[cert]
	return s, ok
}

// Insert adds a round for cert. It reports false without modifying the
// table if a round for cert already exists, preserving the exclusion
// invariant that at most one RoundState exists per PeerCert.
func (t *RoundTable) Insert(cert PeerCert, s *RoundState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rounds[cert]; exists {
		return false
	}
	t.rounds[cert] = s
	return true
}

// Remove deletes and returns the round state for cert, if any.
func (t *RoundTable) Remove(cert PeerCert) (*RoundState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.rounds[cert]
	if ok {
		delete(t.rounds, cert)
	}
	return s, ok
}

// Count returns the number of rounds currently in progress.
func (t *RoundTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rounds)
}

// Certs returns a snapshot of peers with a round currently in progress.
func (t *RoundTable) Certs() []PeerCert {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerCert, 0, len(t.rounds))
	for c := range t.rounds {
		out = append(out, c)
	}
	return out
}

// SetInitiateTarget arms initiate_tgt to cert with its speculative round
// state, provided no target is already set. It reports whether the
// target was set.
func (t *RoundTable) SetInitiateTarget(cert PeerCert, s *RoundState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target != nil {
		return false
	}
	t.target = &initiateTarget{cert: cert, state: s}
	return true
}

// InitiateTargetCert peeks at the current initiate_tgt, if set.
func (t *RoundTable) InitiateTargetCert() (PeerCert, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == nil {
		return "", false
	}
	return t.target.cert, true
}

// TakeInitiateTargetIfMatches clears initiate_tgt and returns its round
// state, but only if its cert equals cert. This is the operation that
// moves a speculative round from initiate_tgt into the round map once
// its matching Accept arrives.
func (t *RoundTable) TakeInitiateTargetIfMatches(cert PeerCert) (*RoundState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target == nil || t.target.cert != cert {
		return nil, false
	}
	s := t.target.state
	t.target = nil
	return s, true
}

// ClearInitiateTarget drops initiate_tgt unconditionally, used when
// sending the Initiate fails or the target's connection closes before
// any Accept arrives.
func (t *RoundTable) ClearInitiateTarget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = nil
}

// ExclusionSet returns the set of peer certs the initiation loop must
// not pick as a new target: everyone with a round in progress, plus the
// current initiate_tgt. It is built with gopkg.in/fatih/set.v0, the same
// membership-set library used elsewhere for peer-local known-item
// tracking.
func (t *RoundTable) ExclusionSet() *set.Set {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := set.New()
	for c := range t.rounds {
		s.Add(c)
	}
	if t.target != nil {
		s.Add(t.target.cert)
	}
	return s
}

// CompletionOutcome reports what EvaluateCompletion found.
type CompletionOutcome int

const (
	// StillOpen means the round for cert remains in the table unchanged.
	StillOpen CompletionOutcome = iota
	// CompletedSuccess means the round satisfied the completion
	// invariant and was removed.
	CompletedSuccess
	// CompletedTimeout means the round exceeded its round_timeout_ms
	// budget and was removed.
	CompletedTimeout
)

// EvaluateCompletion atomically checks cert's round against the
// completion invariant and timeout budget, removing it if either fires.
// Folding the read-check-remove sequence into one critical section
// closes the TOCTOU window a separate Get+Remove pair would leave open
// between two concurrently dispatched messages for the same peer.
func (t *RoundTable) EvaluateCompletion(cert PeerCert, now time.Time) (*RoundState, CompletionOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.rounds[cert]
	if !ok {
		return nil, StillOpen
	}
	if s.Complete() {
		delete(t.rounds, cert)
		return s, CompletedSuccess
	}
	if s.Expired(now) {
		delete(t.rounds, cert)
		return s, CompletedTimeout
	}
	return s, StillOpen
}
