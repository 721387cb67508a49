package gossip

import "encoding/hex"

// PeerCert is the opaque certificate identifier the transport collaborator
// extracts from a peer's session. All routing, round-table keying, and
// metrics are indexed by PeerCert.
type PeerCert string

// NewPeerCert wraps a raw certificate byte string for use as a map key.
func NewPeerCert(raw []byte) PeerCert {
	return PeerCert(raw)
}

// Bytes returns the raw certificate bytes.
func (c PeerCert) Bytes() []byte {
	return []byte(c)
}

// String renders a short hex prefix, abbreviated for logging.
func (c PeerCert) String() string {
	b := c.Bytes()
	if len(b) > 8 {
		b = b[:8]
	}
	return hex.EncodeToString(b)
}

// Less implements the cert-comparison tie-break used to resolve
// simultaneous double-initiate races in the state machine. Lexicographic
// byte comparison on the raw certificate is deterministic and symmetric
// between the two peers without requiring either side to know the
// other's notion of "who goes first".
func (c PeerCert) Less(other PeerCert) bool {
	return string(c) < string(other)
}

// Space scopes every gossip message to a namespace; messages addressed
// to a different space are rejected.
type Space [32]byte

// String renders a hex summary for logging.
func (s Space) String() string {
	return hex.EncodeToString(s[:])
}
