package gossip

import "github.com/pkg/errors"

// Error taxonomy. Each round-closing failure is classified into exactly
// one of these so the caller (and the metrics ledger) can tell a
// protocol violation from a dropped connection from a timeout.
var (
	// ErrProtocol marks a message received in a state that forbids it,
	// e.g. an Accept with no matching initiate_tgt.
	ErrProtocol = errors.New("gossip: protocol error")
	// ErrTransport marks a connection dropped mid-round.
	ErrTransport = errors.New("gossip: transport error")
	// ErrPersistence marks a failure from the persistence collaborator,
	// propagated as a round error without crashing the engine.
	ErrPersistence = errors.New("gossip: persistence error")
	// ErrTimeout marks a round that exceeded its round_timeout_ms budget.
	ErrTimeout = errors.New("gossip: round timed out")
)

// ErrNoRound is returned when a message arrives for a peer with neither
// an active RoundState nor a matching initiate_tgt: a protocol error with
// no reply sent.
var ErrNoRound = errors.Wrap(ErrProtocol, "no round or initiate target for peer")

// protocolErrorf wraps ErrProtocol with a formatted cause, annotating a
// protocol violation with its specific offending field.
func protocolErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrProtocol, format, args...)
}

// persistenceErrorf annotates cause with format/args while keeping
// ErrPersistence reachable in the Cause() chain, so classify can still
// find the taxonomy bucket underneath the specific failure text.
func persistenceErrorf(cause error, format string, args ...interface{}) error {
	base := errors.Wrap(ErrPersistence, cause.Error())
	return errors.Wrapf(base, format, args...)
}

func transportErrorf(cause error, format string, args ...interface{}) error {
	base := errors.Wrap(ErrTransport, cause.Error())
	return errors.Wrapf(base, format, args...)
}

type causer interface {
	Cause() error
}

// classify reports which taxonomy bucket err belongs to, for logging in
// Manager's dispatch loop. Unlike pkg/errors.Cause (which unwraps all the
// way to the bottom), this walks the chain looking for one of the four
// sentinels at any depth, since persistenceErrorf/transportErrorf/
// protocolErrorf all place their sentinel above the real root cause
// rather than at it.
func classify(err error) error {
	for err != nil {
		switch err {
		case ErrProtocol, ErrTransport, ErrPersistence, ErrTimeout:
			return err
		}
		c, ok := err.(causer)
		if !ok {
			return ErrProtocol
		}
		err = c.Cause()
	}
	return nil
}
