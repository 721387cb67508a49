package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Roemello4/holochain/internal/glog"
)

// Manager is the process wiring: one initiation ticker, one
// inbound-message dispatcher, one timeout sweeper, all running as
// goroutines multiplexed into a single select per loop. Manager owns the
// RoundTable, Metrics, Config, Persistence, and Transport — it is the
// only exported type a caller needs to construct to run the engine.
type Manager struct {
	self        PeerCert
	space       Space
	cfg         Config
	table       *RoundTable
	metrics     *Metrics
	persistence Persistence
	transport   Transport
	machine     *Machine
	initiator   *Initiator

	nudge chan PeerCert
	term  chan struct{}
	wg    sync.WaitGroup
}

// NewManager constructs the engine. Call Run to start its background
// goroutines; call Stop to tear them down.
func NewManager(self PeerCert, space Space, cfg Config, persistence Persistence, transport Transport) *Manager {
	table := NewRoundTable()
	metrics := NewMetricsWithTriggers(cfg.MaxTriggers)
	machine := NewMachine(self, table, metrics, persistence, cfg)
	initiator := NewInitiator(self, space, table, metrics, persistence, transport, machine, cfg)
	return &Manager{
		self:        self,
		space:       space,
		cfg:         cfg,
		table:       table,
		metrics:     metrics,
		persistence: persistence,
		transport:   transport,
		machine:     machine,
		initiator:   initiator,
		nudge:       make(chan PeerCert, 16),
		term:        make(chan struct{}),
	}
}

// RoundTable exposes the engine's round table for introspection (e.g. by
// internal/telemetry or an operator debug endpoint).
func (mgr *Manager) RoundTable() *RoundTable { return mgr.table }

// Metrics exposes the engine's metrics ledger for introspection.
func (mgr *Manager) Metrics() *Metrics { return mgr.metrics }

// RecordForceInitiate primes the initiation loop to prefer any candidate
// for the next MaxTriggers rounds, the entry point internal/forcesignal
// calls when an operator drops a marker file.
func (mgr *Manager) RecordForceInitiate() {
	mgr.metrics.RecordForceInitiate()
}

// Nudge requests an out-of-band candidacy check for cert without waiting
// for the next tick. It is non-blocking; if the nudge channel is full
// the request is dropped, matching the "yields silently" tone of the
// tick path itself.
func (mgr *Manager) Nudge(cert PeerCert) {
	select {
	case mgr.nudge <- cert:
	default:
		glog.V(glog.Detail).Infof("dropping nudge for %s: queue full", cert)
	}
}

// Run starts the initiation ticker, the inbound dispatcher, and the
// timeout sweeper as background goroutines. It returns immediately;
// call Stop to shut them down.
func (mgr *Manager) Run(ctx context.Context) {
	mgr.wg.Add(3)
	go mgr.runTicker(ctx)
	go mgr.runDispatcher(ctx)
	go mgr.runSweeper(ctx)
}

// Stop cancels all background goroutines and waits for them to exit. It
// does not flush or rollback anything itself: no persistent state is
// corrupted by an abrupt stop because all mutations are either local or
// delegated to the persistence collaborator through its own
// transactional API.
func (mgr *Manager) Stop() {
	close(mgr.term)
	mgr.wg.Wait()
}

func (mgr *Manager) runTicker(ctx context.Context) {
	defer mgr.wg.Done()
	ticker := time.NewTicker(mgr.cfg.InitiatePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, ok, err := mgr.initiator.Tick(ctx); err != nil {
				glog.V(glog.Warn).Infof("initiation tick error: %v", err)
			} else if ok {
				glog.V(glog.Detail).Infof("initiation tick: armed a new round")
			}
		case cert := <-mgr.nudge:
			if _, err := mgr.initiator.Nudge(ctx, cert); err != nil {
				glog.V(glog.Warn).Infof("nudge for %s error: %v", cert, err)
			}
		case <-ctx.Done():
			return
		case <-mgr.term:
			return
		}
	}
}

func (mgr *Manager) runDispatcher(ctx context.Context) {
	defer mgr.wg.Done()
	inbound := mgr.transport.Inbound()
	connected := mgr.transport.Connected()
	closed := mgr.transport.Closed()
	for {
		select {
		case env, ok := <-inbound:
			if !ok {
				return
			}
			mgr.dispatch(ctx, env)
		case cert := <-connected:
			glog.V(glog.Detail).Infof("peer %s connected", cert)
		case cert := <-closed:
			mgr.handlePeerClosed(cert)
		case <-ctx.Done():
			return
		case <-mgr.term:
			return
		}
	}
}

func (mgr *Manager) dispatch(ctx context.Context, env Envelope) {
	if env.Space != mgr.space {
		glog.V(glog.Warn).Infof("dropping message from %s for foreign space %s", env.Cert, env.Space)
		return
	}
	out, err := mgr.machine.Handle(ctx, env.Space, env.Cert, env.Msg)
	if err != nil {
		glog.V(glog.Warn).Infof("round error with %s (%v): %v", env.Cert, classify(err), err)
		return
	}
	for _, msg := range out {
		if err := mgr.transport.Send(ctx, env.Space, env.Cert, msg); err != nil {
			glog.V(glog.Warn).Infof("send %s to %s failed: %v", msg.Type(), env.Cert, err)
			mgr.handlePeerClosed(env.Cert)
			return
		}
	}
}

// handlePeerClosed implements the transport-error path: a connection
// dropped mid-round closes that round as an error in the Metrics ledger,
// and leaves the peer reachable again only after cooldown. No
// ConnectError datum is written through Persistence.PutMetricDatum.
func (mgr *Manager) handlePeerClosed(cert PeerCert) {
	if _, ok := mgr.table.Remove(cert); ok {
		mgr.metrics.RecordError(cert)
		glog.V(glog.Warn).Infof("round with %s closed: transport dropped", cert)
	}
	if tgt, ok := mgr.table.InitiateTargetCert(); ok && tgt == cert {
		mgr.table.ClearInitiateTarget()
		mgr.metrics.RecordError(cert)
	}
}

// runSweeper periodically force-closes any round that has outlived its
// round_timeout_ms budget, independent of message traffic — a round
// between two peers who simply stop talking must still terminate.
func (mgr *Manager) runSweeper(ctx context.Context) {
	defer mgr.wg.Done()
	period := mgr.cfg.InitiatePeriod
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mgr.sweep()
		case <-ctx.Done():
			return
		case <-mgr.term:
			return
		}
	}
}

func (mgr *Manager) sweep() {
	now := time.Now()
	for _, cert := range mgr.table.Certs() {
		state, _ := mgr.table.Get(cert)
		_, outcome := mgr.table.EvaluateCompletion(cert, now)
		if outcome == CompletedTimeout {
			mgr.metrics.RecordError(cert)
			age := "unknown age"
			if state != nil {
				age = humanize.Time(state.CreatedAt)
			}
			glog.V(glog.Warn).Infof("round with %s swept for timeout, started %s", cert, age)
		} else if outcome == CompletedSuccess {
			mgr.metrics.RecordSuccess(cert)
		}
	}
}
