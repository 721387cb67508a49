package gossip

import "context"

// Envelope is one wire frame as the Manager's dispatcher sees it: a
// Message scoped to a Space, attributed to the peer that sent it.
// Transport implementations are responsible for framing/parsing the
// six message types into this shape.
type Envelope struct {
	Space Space
	Cert  PeerCert
	Msg   Message
}

// Transport is the external collaborator the engine depends on for
// binary send/receive keyed by PeerCert, plus connect/close
// notification. The TLS session, certificate verification, and actual
// byte framing live entirely on the other side of it.
//
// Within a single peer-to-peer direction messages are delivered FIFO;
// Inbound must preserve that per-peer ordering (concurrent peers may
// interleave freely).
type Transport interface {
	// Send transmits msg to cert, scoped to space. It may suspend and
	// must never be called while the caller holds the round table's
	// lock.
	Send(ctx context.Context, space Space, cert PeerCert, msg Message) error

	// Inbound is the single fan-in stream of received frames. The
	// Manager's dispatcher drains it and hands each Envelope to the state
	// machine one at a time; the round table's lock is held only for each
	// individual table operation within a transition, not across it.
	Inbound() <-chan Envelope

	// Connected and Closed notify when a peer's session opens or drops.
	// A Closed notification mid-round is a transport error.
	Connected() <-chan PeerCert
	Closed() <-chan PeerCert
}
