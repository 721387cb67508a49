package gossip

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/google/uuid"
)

// dedupeCacheSize bounds the per-round "already queued for MissingOps"
// cache (see RoundState.sentOpHashes), so a remote that replays or floods
// Ops blooms cannot force unbounded memory growth within a single round.
const dedupeCacheSize = 4096

// RoundState is the per-concurrent-round bookkeeping for one active
// gossip round. One exists per remote peer we are currently exchanging
// data with, keyed in the RoundTable by PeerCert.
type RoundState struct {
	// ID is a correlation identifier used only in log lines, so a
	// round's full message trace can be grepped out of a multi-peer log.
	ID uuid.UUID

	CommonArcSet ArcSet

	// NumSentOpsBlooms counts outbound Ops-bloom messages this side has
	// sent that the remote still owes a MissingOps reply for.
	NumSentOpsBlooms int

	// ReceivedAllIncomingOpsBlooms becomes true once the remote has sent
	// its last Ops bloom (finished=true).
	ReceivedAllIncomingOpsBlooms bool

	CreatedAt      time.Time
	RoundTimeoutMs int64

	// sentOpHashes dedupes outbound MissingOps entries across every
	// incoming Ops bloom of this round, bounded by an LRU so a remote
	// cannot force this cache to grow without limit.
	sentOpHashes *lru.Cache

	// InitiatedByUs is true when this round's Initiate was sent by us
	// (we are the "initiator" role); false when it was received from
	// the remote (we are the "accepter" role). Nothing in the engine
	// reads it; the protocol treats both roles symmetrically once the
	// round exists.
	InitiatedByUs bool
}

// NewRoundState creates a round entered at now, with an absolute
// deadline of now+timeout.
func NewRoundState(now time.Time, timeoutMs int64, initiatedByUs bool) *RoundState {
	cache, _ := lru.New(dedupeCacheSize)
	return &RoundState{
		ID:             uuid.New(),
		CreatedAt:      now,
		RoundTimeoutMs: timeoutMs,
		sentOpHashes:   cache,
		InitiatedByUs:  initiatedByUs,
	}
}

// Expired reports whether the round has outlived its timeout budget as
// of now.
func (s *RoundState) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > time.Duration(s.RoundTimeoutMs)*time.Millisecond
}

// Complete reports whether the round satisfies the completion invariant:
// it is removed once there are no outstanding sent op blooms and all
// incoming op blooms have been received.
func (s *RoundState) Complete() bool {
	return s.NumSentOpsBlooms == 0 && s.ReceivedAllIncomingOpsBlooms
}

// markSent records that hash has already been queued in a MissingOps
// response this round, returning false if it was already recorded (so
// the caller can skip re-sending it).
func (s *RoundState) markSent(hash OpHash) bool {
	if s.sentOpHashes == nil {
		return true
	}
	if s.sentOpHashes.Contains(hash) {
		return false
	}
	s.sentOpHashes.Add(hash, struct{}{})
	return true
}
