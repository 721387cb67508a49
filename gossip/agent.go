package gossip

import "encoding/hex"

// Agent is the signing public key that identifies an agent claiming
// responsibility for an arc of the keyspace.
type Agent [32]byte

func (a Agent) String() string { return hex.EncodeToString(a[:]) }

// OpHash is the content address of a DHT operation: a 32-byte digest plus
// a 4-byte location prefix, so an op's keyspace location can be read
// directly off its hash.
type OpHash [36]byte

func (h OpHash) String() string { return hex.EncodeToString(h[:]) }

// Location extracts the keyspace position encoded in the hash's prefix.
func (h OpHash) Location() uint32 {
	return uint32(h[0]) | uint32(h[1])<<8 | uint32(h[2])<<16 | uint32(h[3])<<24
}

// AgentInfoSigned is the signed, gossipable record of one agent's claimed
// arc and network presence, as produced by the persistence collaborator's
// QueryAgentInfo / stored via StoreAgentInfo.
type AgentInfoSigned struct {
	Agent Agent
	Space Space
	Arc   ArcInterval
	URL   string
	// Cert is the transport certificate of the peer currently hosting
	// this agent, as resolved by the persistence collaborator from its
	// own record of which connection last delivered/confirmed it. The
	// initiation loop dials PeerCert, not Agent, so this is the join key
	// between the two identity spaces.
	Cert      PeerCert
	Signature []byte
	// SignedAtMs is the time the record was signed, used by
	// query_gossip_agents' since/until window.
	SignedAtMs uint64
	// ExpiresAtMs is when the record should no longer be trusted.
	ExpiresAtMs uint64
}

// Key returns the bloom/dedupe key for this record: its signature, which
// is unique per signing event and therefore stable for bloom membership
// tests. Two signings of the same facts produce different signatures, so
// re-signing always counts as "new" to a remote that already saw the old
// one.
func (a AgentInfoSigned) Key() []byte {
	return a.Signature
}
