package gossip_test

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/Roemello4/holochain/gossip"
	"github.com/Roemello4/holochain/gossip/gossiptest"
)

func testSpace() gossip.Space {
	var s gossip.Space
	copy(s[:], []byte("scenario-space"))
	return s
}

func testCert(name string) gossip.PeerCert {
	return gossip.NewPeerCert([]byte(name))
}

func opHash(loc uint32, tag byte) gossip.OpHash {
	var h gossip.OpHash
	binary.LittleEndian.PutUint32(h[:4], loc)
	h[4] = tag
	return h
}

func fullArcAgent(agent byte, cert gossip.PeerCert, space gossip.Space) gossip.AgentInfoSigned {
	var a gossip.Agent
	a[0] = agent
	return gossip.AgentInfoSigned{
		Agent:     a,
		Space:     space,
		Arc:       gossip.ArcInterval{Start: 0, Length: gossip.FullArcLength},
		Cert:      cert,
		Signature: []byte{agent, 's', 'i', 'g'},
	}
}

// harness wires up two in-process peers (Alice, Bob), each with its own
// store and round table, with no transport between them: messages are
// handed from one Machine to the other by drive (no goroutines) so scenario
// assertions can inspect state deterministically between steps.
type harness struct {
	space gossip.Space
	cfg   gossip.Config

	aliceCert, bobCert        gossip.PeerCert
	aliceStore, bobStore      *gossiptest.Store
	aliceTable, bobTable      *gossip.RoundTable
	aliceMetrics, bobMetrics  *gossip.Metrics
	aliceMachine, bobMachine  *gossip.Machine
}

func newHarness(t *testing.T) *harness {
	space := testSpace()
	aliceCert := testCert("alice")
	bobCert := testCert("bob")

	aliceStore := gossiptest.NewStore()
	bobStore := gossiptest.NewStore()
	aliceStore.Seed(space, fullArcAgent(1, aliceCert, space))
	bobStore.Seed(space, fullArcAgent(2, bobCert, space))

	cfg := gossip.DefaultConfig()
	aliceTable := gossip.NewRoundTable()
	bobTable := gossip.NewRoundTable()
	aliceMetrics := gossip.NewMetricsWithTriggers(cfg.MaxTriggers)
	bobMetrics := gossip.NewMetricsWithTriggers(cfg.MaxTriggers)

	return &harness{
		space:        space,
		cfg:          cfg,
		aliceCert:    aliceCert,
		bobCert:      bobCert,
		aliceStore:   aliceStore,
		bobStore:     bobStore,
		aliceTable:   aliceTable,
		bobTable:     bobTable,
		aliceMetrics: aliceMetrics,
		bobMetrics:   bobMetrics,
		aliceMachine: gossip.NewMachine(aliceCert, aliceTable, aliceMetrics, aliceStore, cfg),
		bobMachine:   gossip.NewMachine(bobCert, bobTable, bobMetrics, bobStore, cfg),
	}
}

type queuedMsg struct {
	to  gossip.PeerCert
	msg gossip.Message
}

// drive floods msg (sent by "from" to "to") through both machines until
// no side has any outbound message left to deliver, simulating a fully
// delivered FIFO exchange for a single round.
func (h *harness) drive(t *testing.T, to, from gossip.PeerCert, msg gossip.Message) {
	queue := []queuedMsg{{to: to, msg: msg}}
	for i := 0; len(queue) > 0; i++ {
		require.Less(t, i, 2000, "round did not converge")
		item := queue[0]
		queue = queue[1:]

		var machine *gossip.Machine
		var sender gossip.PeerCert
		if item.to == h.bobCert {
			machine = h.bobMachine
			sender = h.aliceCert
		} else {
			machine = h.aliceMachine
			sender = h.bobCert
		}
		out, err := machine.Handle(context.Background(), h.space, sender, item.msg)
		require.NoError(t, err)
		for _, m := range out {
			queue = append(queue, queuedMsg{to: sender, msg: m})
		}
	}
}

func TestHappyPathRoundCompletesOnBothSides(t *testing.T) {
	h := newHarness(t)
	h.aliceStore.SeedOps(h.space, gossip.OpPayload{Hash: opHash(10, 'a'), Data: []byte("alice-op")})
	h.bobStore.SeedOps(h.space, gossip.OpPayload{Hash: opHash(20, 'b'), Data: []byte("bob-op")})

	ctx := context.Background()
	initiate, err := h.bobMachine.CreateInitiate(ctx, h.space, h.aliceCert)
	require.NoError(t, err)

	h.drive(t, h.aliceCert, h.bobCert, initiate)

	require.Equal(t, 0, h.aliceTable.Count(), "alice's round table: %s", spew.Sdump(h.aliceTable.Certs()))
	require.Equal(t, 0, h.bobTable.Count(), "bob's round table: %s", spew.Sdump(h.bobTable.Certs()))
	_, aliceHasTgt := h.aliceTable.InitiateTargetCert()
	_, bobHasTgt := h.bobTable.InitiateTargetCert()
	require.False(t, aliceHasTgt)
	require.False(t, bobHasTgt)

	require.False(t, h.aliceMetrics.IsCurrentRound(h.bobCert))
	require.False(t, h.bobMetrics.IsCurrentRound(h.aliceCert))

	aliceOps, err := h.aliceStore.FetchOpData(ctx, h.space, nil, []gossip.OpHash{opHash(20, 'b')})
	require.NoError(t, err)
	require.Len(t, aliceOps, 1, "alice should have pulled bob's op during the round")

	bobOps, err := h.bobStore.FetchOpData(ctx, h.space, nil, []gossip.OpHash{opHash(10, 'a')})
	require.NoError(t, err)
	require.Len(t, bobOps, 1, "bob should have pulled alice's op during the round")
}

func TestEmptyDataSymmetricClose(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	initiate, err := h.bobMachine.CreateInitiate(ctx, h.space, h.aliceCert)
	require.NoError(t, err)

	h.drive(t, h.aliceCert, h.bobCert, initiate)

	require.Equal(t, 0, h.aliceTable.Count())
	require.Equal(t, 0, h.bobTable.Count())
}

func TestUnfinishedMissingOpsLeavesRoundStanding(t *testing.T) {
	h := newHarness(t)
	state := gossip.NewRoundState(time.Now(), h.cfg.RoundTimeoutMs, false)
	state.NumSentOpsBlooms = 1
	state.ReceivedAllIncomingOpsBlooms = true
	require.True(t, h.bobTable.Insert(h.aliceCert, state))

	out, err := h.bobMachine.Handle(context.Background(), h.space, h.aliceCert, gossip.MissingOps{Finished: false})
	require.NoError(t, err)
	require.Empty(t, out)

	s, ok := h.bobTable.Get(h.aliceCert)
	require.True(t, ok)
	require.Equal(t, 1, s.NumSentOpsBlooms)
}

func TestFinishedMissingOpsRemovesRound(t *testing.T) {
	h := newHarness(t)
	state := gossip.NewRoundState(time.Now(), h.cfg.RoundTimeoutMs, false)
	state.NumSentOpsBlooms = 1
	state.ReceivedAllIncomingOpsBlooms = true
	require.True(t, h.bobTable.Insert(h.aliceCert, state))

	out, err := h.bobMachine.Handle(context.Background(), h.space, h.aliceCert, gossip.MissingOps{Finished: true})
	require.NoError(t, err)
	require.Empty(t, out)

	_, ok := h.bobTable.Get(h.aliceCert)
	require.False(t, ok)
}

func TestFinishedMissingOpsWithOutstandingBloomsLeavesRoundStanding(t *testing.T) {
	h := newHarness(t)
	state := gossip.NewRoundState(time.Now(), h.cfg.RoundTimeoutMs, false)
	state.NumSentOpsBlooms = 1
	state.ReceivedAllIncomingOpsBlooms = false
	require.True(t, h.bobTable.Insert(h.aliceCert, state))

	out, err := h.bobMachine.Handle(context.Background(), h.space, h.aliceCert, gossip.MissingOps{Finished: true})
	require.NoError(t, err)
	require.Empty(t, out)

	s, ok := h.bobTable.Get(h.aliceCert)
	require.True(t, ok)
	require.Equal(t, 0, s.NumSentOpsBlooms)
	require.False(t, s.ReceivedAllIncomingOpsBlooms)
}

func TestFinalOpsClosesRound(t *testing.T) {
	h := newHarness(t)
	state := gossip.NewRoundState(time.Now(), h.cfg.RoundTimeoutMs, false)
	state.NumSentOpsBlooms = 0
	state.ReceivedAllIncomingOpsBlooms = false
	state.CommonArcSet = gossip.NewArcSet(gossip.ArcInterval{Start: 0, Length: gossip.FullArcLength})
	require.True(t, h.bobTable.Insert(h.aliceCert, state))

	out, err := h.bobMachine.Handle(context.Background(), h.space, h.aliceCert, gossip.Ops{Finished: true})
	require.NoError(t, err)
	require.Len(t, out, 1)
	mo, ok := out[0].(gossip.MissingOps)
	require.True(t, ok)
	require.True(t, mo.Finished)
	require.Empty(t, mo.Ops)

	_, ok = h.bobTable.Get(h.aliceCert)
	require.False(t, ok, "round should be removed once the final Ops closes it")
}

func TestDoubleInitiateResolvesToOneSide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bobInitiate, err := h.bobMachine.CreateInitiate(ctx, h.space, h.aliceCert)
	require.NoError(t, err)
	aliceInitiate, err := h.aliceMachine.CreateInitiate(ctx, h.space, h.bobCert)
	require.NoError(t, err)

	aliceOut, err := h.aliceMachine.Handle(ctx, h.space, h.bobCert, bobInitiate)
	require.NoError(t, err)
	bobOut, err := h.bobMachine.Handle(ctx, h.space, h.aliceCert, aliceInitiate)
	require.NoError(t, err)

	// Exactly one side's Initiate must have produced a reply; the other
	// must have been dropped silently by the tie-break.
	require.True(t, (len(aliceOut) > 0) != (len(bobOut) > 0),
		"exactly one side should accept the other's Initiate, not both and not neither")
}

func TestInitiateAfterTargetSetYieldsAbsent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Bob needs to know about alice as an agent to even consider her a
	// candidate; seed that record before putting her mid-round.
	h.bobStore.Seed(h.space, fullArcAgent(1, h.aliceCert, h.space))

	initiate, err := h.aliceMachine.CreateInitiate(ctx, h.space, h.bobCert)
	require.NoError(t, err)
	bobOut, err := h.bobMachine.Handle(ctx, h.space, h.aliceCert, initiate)
	require.NoError(t, err)
	require.NotEmpty(t, bobOut)

	init := gossip.NewInitiator(h.bobCert, h.space, h.bobTable, h.bobMetrics, h.bobStore, nil, h.bobMachine, gossip.DefaultConfig())
	_, ok, err := init.Tick(ctx)
	require.NoError(t, err)
	require.False(t, ok, "bob's only candidate (alice) is already mid-round, so no candidate should be selected")
}
