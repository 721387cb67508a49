package gossip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		cur := t
		t = t.Add(time.Millisecond)
		return cur
	}
}

func TestMetricsHistoryCapsAtMaxHistoryPlusOne(t *testing.T) {
	m := NewMetrics()
	m.clock = fixedClock(time.Now())
	cert := NewPeerCert([]byte("alice"))
	for i := 0; i < MaxHistory+5; i++ {
		m.RecordError(cert)
	}
	m.mu.Lock()
	n := m.nodes[cert]
	got := len(n.errors)
	m.mu.Unlock()
	require.LessOrEqual(t, got, MaxHistory+1)
	require.Equal(t, MaxHistory+1, got)
}

func TestRecordSuccessDecrementsForceInitiateOnlyAfterOurInitiate(t *testing.T) {
	m := NewMetrics()
	m.clock = fixedClock(time.Now())
	cert := NewPeerCert([]byte("bob"))

	m.RecordForceInitiate()
	require.True(t, m.ForcedInitiate())

	// A remote-initiated success must not consume the force-initiate
	// budget: it wasn't a forced round.
	m.RecordRemoteRound(cert)
	m.RecordSuccess(cert)
	require.True(t, m.ForcedInitiate())

	// Each self-initiated success consumes one of the maxTriggers (2)
	// forced rounds.
	m.RecordInitiate(cert)
	m.RecordSuccess(cert)
	require.True(t, m.ForcedInitiate())

	m.RecordInitiate(cert)
	m.RecordSuccess(cert)
	require.False(t, m.ForcedInitiate())
}

func TestForceInitiateSaturatesAtZero(t *testing.T) {
	m := NewMetrics()
	m.clock = fixedClock(time.Now())
	cert := NewPeerCert([]byte("carol"))
	m.RecordInitiate(cert)
	m.RecordSuccess(cert)
	require.False(t, m.ForcedInitiate())
}

func TestLastOutcomePicksLatestByInstant(t *testing.T) {
	m := NewMetrics()
	m.clock = fixedClock(time.Now())
	cert := NewPeerCert([]byte("dave"))

	m.RecordInitiate(cert)
	m.RecordSuccess(cert)
	outcome, ok := m.LastOutcome(cert)
	require.True(t, ok)
	require.True(t, outcome.Success)

	m.RecordInitiate(cert)
	m.RecordError(cert)
	outcome, ok = m.LastOutcome(cert)
	require.True(t, ok)
	require.False(t, outcome.Success)
}

func TestLastOutcomeAbsentWhenNeitherRecorded(t *testing.T) {
	m := NewMetrics()
	_, ok := m.LastOutcome(NewPeerCert([]byte("nobody")))
	require.False(t, ok)
}

func TestIsCurrentRoundLifecycle(t *testing.T) {
	m := NewMetrics()
	m.clock = fixedClock(time.Now())
	cert := NewPeerCert([]byte("erin"))
	require.False(t, m.IsCurrentRound(cert))
	m.RecordInitiate(cert)
	require.True(t, m.IsCurrentRound(cert))
	m.RecordSuccess(cert)
	require.False(t, m.IsCurrentRound(cert))
}
