package gossip

import (
	"context"
	"time"

	"github.com/jpillora/backoff"

	"github.com/Roemello4/holochain/internal/glog"
)

// Initiator is the periodic initiation loop. It holds no state of its own
// beyond what RoundTable and Metrics already track; Manager is the only
// thing that schedules its Tick calls.
type Initiator struct {
	self        PeerCert
	space       Space
	table       *RoundTable
	metrics     *Metrics
	persistence Persistence
	transport   Transport
	machine     *Machine
	cfg         Config

	// cooldown computes the fixed window a recently-errored peer is
	// excluded for. Min==Max so it behaves as a plain duration lookup;
	// using jpillora/backoff here (rather than a bare constant) keeps the
	// cooldown computation on the same library the rest of the pack
	// reaches for, and leaves room to turn it into a real exponential
	// backoff later without touching call sites.
	cooldown *backoff.Backoff
	clock    func() time.Time
}

// NewInitiator constructs the initiation loop for self, operating in
// space against table/metrics/persistence/transport, emitting Initiate
// messages through machine.
func NewInitiator(self PeerCert, space Space, table *RoundTable, metrics *Metrics, persistence Persistence, transport Transport, machine *Machine, cfg Config) *Initiator {
	return &Initiator{
		self:        self,
		space:       space,
		table:       table,
		metrics:     metrics,
		persistence: persistence,
		transport:   transport,
		machine:     machine,
		cfg:         cfg,
		cooldown:    &backoff.Backoff{Min: cfg.ErrorCooldown, Max: cfg.ErrorCooldown, Factor: 1},
		clock:       time.Now,
	}
}

// Tick picks a candidate, arms initiate_tgt, sends Initiate, and records
// the initiation. It returns the chosen cert, or false if no candidate
// exists, in which case it yields silently.
func (init *Initiator) Tick(ctx context.Context) (PeerCert, bool, error) {
	cert, ok, err := init.selectCandidate(ctx)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	msg, err := init.machine.CreateInitiate(ctx, init.space, cert)
	if err != nil {
		return "", false, err
	}
	if err := init.transport.Send(ctx, init.space, cert, msg); err != nil {
		init.table.ClearInitiateTarget()
		init.metrics.RecordError(cert)
		return "", false, transportErrorf(err, "send Initiate to %s", cert)
	}
	glog.V(glog.Info).Infof("sent Initiate to %s", cert)
	return cert, true, nil
}

// Nudge requests an immediate candidacy check for one peer, bypassing
// the tick interval for a liveness nudge. It proceeds only if cert has
// no round in progress, is not the current initiate_tgt, and is not
// mid-round per Metrics; the tick path's self, arc-overlap and error
// cooldown checks are not applied.
func (init *Initiator) Nudge(ctx context.Context, cert PeerCert) (bool, error) {
	excluded := init.table.ExclusionSet()
	if excluded.Has(cert) {
		return false, nil
	}
	if init.metrics.IsCurrentRound(cert) {
		return false, nil
	}
	msg, err := init.machine.CreateInitiate(ctx, init.space, cert)
	if err != nil {
		return false, err
	}
	if err := init.transport.Send(ctx, init.space, cert, msg); err != nil {
		init.table.ClearInitiateTarget()
		init.metrics.RecordError(cert)
		return false, transportErrorf(err, "send nudged Initiate to %s", cert)
	}
	return true, nil
}

// selectCandidate narrows the queryable agent set down to one initiation
// target, applying exclusion, cooldown, and force-initiate overrides.
func (init *Initiator) selectCandidate(ctx context.Context) (PeerCert, bool, error) {
	localArc, _, err := init.machineLocalArcSet(ctx)
	if err != nil {
		return "", false, err
	}
	infos, err := init.persistence.QueryAgentInfo(ctx, init.space)
	if err != nil {
		return "", false, persistenceErrorf(err, "query agent info for initiation candidates")
	}

	excluded := init.table.ExclusionSet()
	now := init.clock()

	// Agent-info records within the local arc set are the candidate
	// pool — peers hosting agents relevant to what we ourselves claim.
	seen := make(map[PeerCert]bool)
	var candidates []PeerCert
	for _, info := range infos {
		if info.Cert == "" || info.Cert == init.self {
			continue
		}
		if !commonOverlaps(localArc, info.Arc) {
			continue
		}
		if seen[info.Cert] {
			continue
		}
		seen[info.Cert] = true
		if excluded.Has(info.Cert) {
			continue
		}
		if init.metrics.IsCurrentRound(info.Cert) {
			continue
		}
		candidates = append(candidates, info.Cert)
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	if init.metrics.ForcedInitiate() {
		return candidates[0], true, nil
	}

	var best PeerCert
	haveBest := false
	var bestSuccess time.Time
	bestHasSuccess := false
	for _, cert := range candidates {
		if outcome, ok := init.metrics.LastOutcome(cert); ok && !outcome.Success {
			if now.Sub(outcome.At) < init.cooldown.Duration() {
				continue
			}
		}
		success, hasSuccess := init.metrics.LastSuccess(cert)
		switch {
		case !haveBest:
			best, haveBest, bestSuccess, bestHasSuccess = cert, true, success, hasSuccess
		case !bestHasSuccess:
			// already have a never-succeeded candidate as best; only a
			// different never-succeeded candidate could tie, keep the
			// first seen for determinism
		case hasSuccess && success.Before(bestSuccess):
			best, bestSuccess, bestHasSuccess = cert, success, hasSuccess
		case !hasSuccess:
			best, bestHasSuccess = cert, false
		}
	}
	if !haveBest {
		return "", false, nil
	}
	return best, true, nil
}

func (init *Initiator) machineLocalArcSet(ctx context.Context) (ArcSet, []AgentInfoSigned, error) {
	return init.machine.localArcSet(ctx, init.space)
}
