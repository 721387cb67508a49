package gossiptest

import (
	"context"

	"github.com/Roemello4/holochain/gossip"
)

// LoopbackTransport is a pair of gossip.Transport endpoints wired
// directly to each other's inbound channel, standing in for a real
// connection between two Managers. Each endpoint preserves
// FIFO delivery for its own outbound stream, since each is backed by a
// single buffered Go channel drained in order.
type LoopbackTransport struct {
	selfCert, peerCert gossip.PeerCert
	outbound           chan<- gossip.Envelope
	inbound            chan gossip.Envelope
	connected          chan gossip.PeerCert
	closed             chan gossip.PeerCert
}

// NewLoopbackPair builds two endpoints, each addressed by the other's
// cert, connected to each other.
func NewLoopbackPair(certA, certB gossip.PeerCert) (a, b *LoopbackTransport) {
	chA := make(chan gossip.Envelope, 256)
	chB := make(chan gossip.Envelope, 256)
	a = &LoopbackTransport{
		selfCert:  certA,
		peerCert:  certB,
		outbound:  chB,
		inbound:   chA,
		connected: make(chan gossip.PeerCert, 1),
		closed:    make(chan gossip.PeerCert, 1),
	}
	b = &LoopbackTransport{
		selfCert:  certB,
		peerCert:  certA,
		outbound:  chA,
		inbound:   chB,
		connected: make(chan gossip.PeerCert, 1),
		closed:    make(chan gossip.PeerCert, 1),
	}
	a.connected <- certB
	b.connected <- certA
	return a, b
}

func (t *LoopbackTransport) Send(ctx context.Context, space gossip.Space, cert gossip.PeerCert, msg gossip.Message) error {
	select {
	case t.outbound <- gossip.Envelope{Space: space, Cert: t.selfCert, Msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *LoopbackTransport) Inbound() <-chan gossip.Envelope { return t.inbound }
func (t *LoopbackTransport) Connected() <-chan gossip.PeerCert { return t.connected }
func (t *LoopbackTransport) Closed() <-chan gossip.PeerCert    { return t.closed }

// Close simulates a transport drop, notifying this endpoint's Closed
// channel with the peer's cert.
func (t *LoopbackTransport) Close() {
	t.closed <- t.peerCert
}

var _ gossip.Transport = (*LoopbackTransport)(nil)
