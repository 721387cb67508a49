package gossip

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Roemello4/holochain/gossip/bloom"
	"github.com/Roemello4/holochain/internal/glog"
)

// Machine is the round state machine: it consumes inbound wire messages,
// produces zero or more outbound wire messages, and mutates the
// RoundTable and Metrics under their own short critical sections. It
// holds no lock of its own and performs no I/O while any collaborator's
// lock is held.
type Machine struct {
	self        PeerCert
	table       *RoundTable
	metrics     *Metrics
	persistence Persistence
	cfg         Config
	clock       func() time.Time
}

// NewMachine constructs a state machine for self's own certificate,
// operating against the given RoundTable, Metrics ledger, and
// Persistence collaborator.
func NewMachine(self PeerCert, table *RoundTable, metrics *Metrics, persistence Persistence, cfg Config) *Machine {
	return &Machine{
		self:        self,
		table:       table,
		metrics:     metrics,
		persistence: persistence,
		cfg:         cfg,
		clock:       time.Now,
	}
}

func (m *Machine) now() time.Time {
	return m.clock()
}

// CreateInitiate arms initiate_tgt for cert and returns the Initiate
// message to send. It fails if a target is already set — the initiation
// loop is expected to have already excluded cert via
// RoundTable.ExclusionSet, so this should only race a concurrent
// initiation, not a configuration error.
func (m *Machine) CreateInitiate(ctx context.Context, space Space, cert PeerCert) (Initiate, error) {
	arcSet, infos, err := m.localArcSet(ctx, space)
	if err != nil {
		return Initiate{}, persistenceErrorf(err, "query local agent info to initiate with %s", cert)
	}
	state := NewRoundState(m.now(), m.cfg.RoundTimeoutMs, true)
	if !m.table.SetInitiateTarget(cert, state) {
		return Initiate{}, protocolErrorf("initiate target already set, cannot court %s", cert)
	}
	m.metrics.RecordInitiate(cert)
	glog.V(glog.Info).Infof("initiating round %s with %s", state.ID, cert)
	return Initiate{IntendedArcSet: arcSet, AgentList: infos}, nil
}

// Handle dispatches one inbound message for cert to the appropriate
// transition and returns the outbound batch to send back.
func (m *Machine) Handle(ctx context.Context, space Space, cert PeerCert, msg Message) ([]Message, error) {
	now := m.now()
	switch v := msg.(type) {
	case Initiate:
		return m.handleInitiate(ctx, now, space, cert, v)
	case Accept:
		return m.handleAccept(ctx, now, space, cert, v)
	case Agents:
		return m.handleAgents(ctx, now, space, cert, v)
	case MissingAgents:
		return m.handleMissingAgents(ctx, now, space, cert, v)
	case Ops:
		return m.handleOps(ctx, now, space, cert, v)
	case MissingOps:
		return m.handleMissingOps(ctx, now, space, cert, v)
	default:
		m.metrics.RecordError(cert)
		return nil, protocolErrorf("unrecognized message type from %s", cert)
	}
}

func (m *Machine) handleInitiate(ctx context.Context, now time.Time, space Space, cert PeerCert, msg Initiate) ([]Message, error) {
	if tgt, ok := m.table.InitiateTargetCert(); ok && tgt == cert {
		if m.self.Less(cert) {
			glog.V(glog.Detail).Infof("dropping Initiate from %s: double-initiate, tie-break favors us", cert)
			return nil, nil
		}
		// We lose the tie-break: abandon our own speculative attempt and
		// accept theirs instead.
		m.table.TakeInitiateTargetIfMatches(cert)
		glog.V(glog.Detail).Infof("yielding to Initiate from %s: double-initiate, tie-break favors them", cert)
	}
	if _, exists := m.table.Get(cert); exists {
		m.metrics.RecordError(cert)
		return nil, protocolErrorf("Initiate received from %s with a round already open", cert)
	}

	localArc, localInfos, err := m.localArcSet(ctx, space)
	if err != nil {
		m.metrics.RecordError(cert)
		return nil, persistenceErrorf(err, "query local agent info on Initiate from %s", cert)
	}
	common := localArc.Intersect(msg.IntendedArcSet)

	state := NewRoundState(now, m.cfg.RoundTimeoutMs, false)
	state.CommonArcSet = common
	if !m.table.Insert(cert, state) {
		m.metrics.RecordError(cert)
		return nil, protocolErrorf("round already open for %s", cert)
	}
	m.metrics.RecordRemoteRound(cert)

	out := []Message{Accept{IntendedArcSet: common, AgentList: localInfos}}

	agentsMsg, err := m.buildAgentsMessage(common, localInfos)
	if err != nil {
		return nil, err
	}
	out = append(out, agentsMsg)

	opsMsgs, err := m.buildOpsMessages(ctx, space, common, now)
	if err != nil {
		return nil, persistenceErrorf(err, "build ops blooms for %s", cert)
	}
	out = append(out, opsMsgs...)
	state.NumSentOpsBlooms = len(opsMsgs)

	glog.V(glog.Info).Infof("round %s opened with %s as accepter, %d ops blooms queued", state.ID, cert, len(opsMsgs))
	m.checkCompletion(cert, now)
	return out, nil
}

func (m *Machine) handleAccept(ctx context.Context, now time.Time, space Space, cert PeerCert, msg Accept) ([]Message, error) {
	state, ok := m.table.TakeInitiateTargetIfMatches(cert)
	if !ok {
		m.metrics.RecordError(cert)
		return nil, protocolErrorf("Accept received from %s with no matching initiate target", cert)
	}
	state.CommonArcSet = msg.IntendedArcSet
	if !m.table.Insert(cert, state) {
		m.metrics.RecordError(cert)
		return nil, protocolErrorf("round already open for %s on Accept", cert)
	}

	_, localInfos, err := m.localArcSet(ctx, space)
	if err != nil {
		return nil, persistenceErrorf(err, "query local agent info on Accept from %s", cert)
	}

	var out []Message
	agentsMsg, err := m.buildAgentsMessage(state.CommonArcSet, localInfos)
	if err != nil {
		return nil, err
	}
	out = append(out, agentsMsg)

	opsMsgs, err := m.buildOpsMessages(ctx, space, state.CommonArcSet, now)
	if err != nil {
		return nil, persistenceErrorf(err, "build ops blooms for %s", cert)
	}
	out = append(out, opsMsgs...)
	state.NumSentOpsBlooms = len(opsMsgs)

	glog.V(glog.Info).Infof("round %s with %s accepted as initiator, %d ops blooms queued", state.ID, cert, len(opsMsgs))
	m.checkCompletion(cert, now)
	return out, nil
}

func (m *Machine) handleAgents(ctx context.Context, now time.Time, space Space, cert PeerCert, msg Agents) ([]Message, error) {
	state, ok := m.table.Get(cert)
	if !ok {
		m.metrics.RecordError(cert)
		return nil, ErrNoRound
	}
	_, localInfos, err := m.localArcSet(ctx, space)
	if err != nil {
		return nil, persistenceErrorf(err, "query local agent info on Agents from %s", cert)
	}

	var missing []AgentInfoSigned
	for _, info := range localInfos {
		if !commonOverlaps(state.CommonArcSet, info.Arc) {
			continue
		}
		if msg.Bloom == nil || !msg.Bloom.Check(info.Key()) {
			missing = append(missing, info)
		}
	}
	m.checkCompletion(cert, now)
	return []Message{MissingAgents{Agents: missing}}, nil
}

func (m *Machine) handleMissingAgents(ctx context.Context, now time.Time, space Space, cert PeerCert, msg MissingAgents) ([]Message, error) {
	if _, ok := m.table.Get(cert); !ok {
		m.metrics.RecordError(cert)
		return nil, ErrNoRound
	}
	for _, info := range msg.Agents {
		if err := m.persistence.StoreAgentInfo(ctx, info); err != nil {
			return nil, persistenceErrorf(err, "store agent info from %s", cert)
		}
	}
	m.checkCompletion(cert, now)
	return nil, nil
}

func (m *Machine) handleOps(ctx context.Context, now time.Time, space Space, cert PeerCert, msg Ops) ([]Message, error) {
	state, ok := m.table.Get(cert)
	if !ok {
		m.metrics.RecordError(cert)
		return nil, ErrNoRound
	}

	agentArcs, err := m.persistence.QueryGossipAgents(ctx, space, nil, 0, 0, state.CommonArcSet)
	if err != nil {
		return nil, persistenceErrorf(err, "query gossip agents on Ops from %s", cert)
	}
	hashes, _, _, err := m.persistence.QueryOpHashes(ctx, space, agentArcs, FullTimeWindow(now), m.cfg.MaxOpsPerQuery, m.cfg.IncludeLimboOps)
	if err != nil {
		return nil, persistenceErrorf(err, "query op hashes on Ops from %s", cert)
	}

	hashByKey := make(map[string]OpHash, len(hashes))
	candidateKeys := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		hashByKey[string(h[:])] = h
		candidateKeys = append(candidateKeys, h[:])
	}
	missingKeys := bloom.NotIn(candidateKeys, msg.MissingHashes)

	agents := make([]Agent, 0, len(agentArcs))
	for _, aa := range agentArcs {
		agents = append(agents, aa.Agent)
	}

	missingHashes := make([]OpHash, 0, len(missingKeys))
	for _, k := range missingKeys {
		h := hashByKey[string(k)]
		if !state.markSent(h) {
			continue
		}
		missingHashes = append(missingHashes, h)
	}

	payloads, err := m.persistence.FetchOpData(ctx, space, agents, missingHashes)
	if err != nil {
		return nil, persistenceErrorf(err, "fetch op data on Ops from %s", cert)
	}

	batches := m.batchMissingOps(payloads)
	out := make([]Message, len(batches))
	for i, b := range batches {
		out[i] = b
	}

	if msg.Finished {
		state.ReceivedAllIncomingOpsBlooms = true
	}
	glog.V(glog.Detail).Infof("round %s: Ops from %s, %d missing of %d candidates, %d MissingOps batches", state.ID, cert, len(missingHashes), len(candidateKeys), len(out))
	m.checkCompletion(cert, now)
	return out, nil
}

func (m *Machine) handleMissingOps(ctx context.Context, now time.Time, space Space, cert PeerCert, msg MissingOps) ([]Message, error) {
	state, ok := m.table.Get(cert)
	if !ok {
		m.metrics.RecordError(cert)
		return nil, ErrNoRound
	}
	var totalBytes int
	for _, op := range msg.Ops {
		if err := m.persistence.StoreOpData(ctx, space, op); err != nil {
			return nil, persistenceErrorf(err, "store op data from %s", cert)
		}
		totalBytes += len(op.Data)
	}
	if len(msg.Ops) > 0 {
		glog.V(glog.Detail).Infof("round %s: stored %d ops (%s) from %s", state.ID, len(msg.Ops), humanize.Bytes(uint64(totalBytes)), cert)
	}
	if msg.Finished {
		if state.NumSentOpsBlooms == 0 {
			m.metrics.RecordError(cert)
			return nil, protocolErrorf("MissingOps finished=true from %s with no outstanding blooms", cert)
		}
		state.NumSentOpsBlooms--
	}
	m.checkCompletion(cert, now)
	return nil, nil
}

// checkCompletion applies the round-completion invariant and the
// round_timeout_ms budget after every receive.
func (m *Machine) checkCompletion(cert PeerCert, now time.Time) {
	state, outcome := m.table.EvaluateCompletion(cert, now)
	if state == nil {
		return
	}
	switch outcome {
	case CompletedSuccess:
		m.metrics.RecordSuccess(cert)
		glog.V(glog.Info).Infof("round %s with %s completed successfully", state.ID, cert)
	case CompletedTimeout:
		m.metrics.RecordError(cert)
		glog.V(glog.Warn).Infof("round %s with %s timed out after %dms", state.ID, cert, state.RoundTimeoutMs)
	}
}

func (m *Machine) localArcSet(ctx context.Context, space Space) (ArcSet, []AgentInfoSigned, error) {
	infos, err := m.persistence.QueryAgentInfo(ctx, space)
	if err != nil {
		return ArcSet{}, nil, err
	}
	intervals := make([]ArcInterval, 0, len(infos))
	for _, info := range infos {
		intervals = append(intervals, info.Arc)
	}
	return NewArcSet(intervals...), infos, nil
}

func (m *Machine) buildAgentsMessage(common ArcSet, localInfos []AgentInfoSigned) (Agents, error) {
	var keys [][]byte
	for _, info := range localInfos {
		if commonOverlaps(common, info.Arc) {
			keys = append(keys, info.Key())
		}
	}
	return Agents{Bloom: bloom.New(bloom.AgentDomain, keys)}, nil
}

// buildOpsMessages computes the local op hashes within (common,
// FullTimeWindow) and partitions them into cfg.OpPartitions blooms, the
// last bearing Finished=true.
func (m *Machine) buildOpsMessages(ctx context.Context, space Space, common ArcSet, now time.Time) ([]Message, error) {
	agentArcs, err := m.persistence.QueryGossipAgents(ctx, space, nil, 0, 0, common)
	if err != nil {
		return nil, err
	}
	hashes, _, _, err := m.persistence.QueryOpHashes(ctx, space, agentArcs, FullTimeWindow(now), m.cfg.MaxOpsPerQuery, m.cfg.IncludeLimboOps)
	if err != nil {
		return nil, err
	}
	buckets := partitionOpHashes(hashes, m.cfg.OpPartitions)
	msgs := make([]Message, len(buckets))
	for i, bucket := range buckets {
		keys := make([][]byte, len(bucket))
		for j, h := range bucket {
			keys[j] = h[:]
		}
		msgs[i] = Ops{
			MissingHashes: bloom.New(bloom.OpDomain, keys),
			Finished:      i == len(buckets)-1,
		}
	}
	return msgs, nil
}

func (m *Machine) batchMissingOps(payloads []OpPayload) []MissingOps {
	batch := m.cfg.MaxMissingOpsBatch
	if batch <= 0 {
		batch = len(payloads)
		if batch == 0 {
			batch = 1
		}
	}
	if len(payloads) == 0 {
		// The empty terminator is mandatory even when there was nothing
		// to send: it is how the remote learns this bloom's reply stream
		// is done.
		return []MissingOps{{Finished: true}}
	}
	var out []MissingOps
	for i := 0; i < len(payloads); i += batch {
		end := i + batch
		if end > len(payloads) {
			end = len(payloads)
		}
		out = append(out, MissingOps{Ops: payloads[i:end], Finished: end == len(payloads)})
	}
	return out
}

// commonOverlaps reports whether arc shares any point with common,
// deciding whether an agent's record belongs in a common-arc-scoped
// bloom.
func commonOverlaps(common ArcSet, arc ArcInterval) bool {
	if common.Empty() || arc.Empty() {
		return false
	}
	for _, iv := range common.Intervals() {
		if arc.Overlaps(iv) {
			return true
		}
	}
	return false
}

// partitionOpHashes buckets hashes by their keyspace location modulo n,
// so both sides of a round apply the identical deterministic split
// independently of what data each actually holds.
func partitionOpHashes(hashes []OpHash, n int) [][]OpHash {
	if n <= 0 {
		n = 1
	}
	buckets := make([][]OpHash, n)
	for _, h := range hashes {
		idx := int(h.Location() % uint32(n))
		buckets[idx] = append(buckets[idx], h)
	}
	return buckets
}
