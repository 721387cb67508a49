package bloom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func items(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i), byte(i >> 8), 'x', 'x'}
	}
	return out
}

func TestEmptyIsByteStable(t *testing.T) {
	a := Empty(OpDomain)
	b := New(OpDomain, nil)
	require.Equal(t, a.Bytes(), b.Bytes())
}

func TestRoundTripNoFalseNegatives(t *testing.T) {
	set := items(200)
	f := New(OpDomain, set)
	missing := NotIn(set, f)
	require.Empty(t, missing, "bloom round-trip must not report any member of its own set as missing")
}

func TestNotInAgainstEmptyReturnsEverything(t *testing.T) {
	set := items(10)
	missing := NotIn(set, Empty(OpDomain))
	require.Len(t, missing, len(set))
}

func TestNotInAgainstNilTreatedAsEmpty(t *testing.T) {
	set := items(5)
	missing := NotIn(set, nil)
	require.Len(t, missing, len(set))
}

func TestDecodeRoundTrip(t *testing.T) {
	f := New(AgentDomain, items(42))
	decoded, err := Decode(f.Bytes())
	require.NoError(t, err)
	require.Equal(t, f.Domain(), decoded.Domain())
	for _, it := range items(42) {
		require.Equal(t, f.Check(it), decoded.Check(it))
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	raw := Empty(OpDomain).Bytes()
	raw = append(raw, 0x00) // trailing byte not reflected in the header count
	_, err := Decode(raw)
	require.Error(t, err)
}
