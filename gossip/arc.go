package gossip

import "fmt"

// FullArcLength is the sentinel length meaning an arc covers the entire
// circular keyspace. It is stored as a uint64 since the keyspace's own
// length, 2^32, overflows uint32.
const FullArcLength uint64 = 1 << 32

// ArcInterval is a half-open range over the 32-bit circular keyspace,
// [Start, Start+Length). A Length of zero means empty; a Length of
// FullArcLength means the interval covers the whole ring.
type ArcInterval struct {
	Start  uint32
	Length uint64
}

// Empty reports whether the interval claims no part of the keyspace.
func (a ArcInterval) Empty() bool {
	return a.Length == 0
}

// Full reports whether the interval covers the entire keyspace.
func (a ArcInterval) Full() bool {
	return a.Length >= FullArcLength
}

// Contains reports whether loc falls within the half-open interval,
// accounting for wraparound past the top of the ring.
func (a ArcInterval) Contains(loc uint32) bool {
	if a.Empty() {
		return false
	}
	if a.Full() {
		return true
	}
	offset := uint64(loc) - uint64(a.Start)
	offset &= 0xFFFFFFFF
	return offset < a.Length
}

func (a ArcInterval) String() string {
	if a.Empty() {
		return "Arc(empty)"
	}
	if a.Full() {
		return "Arc(full)"
	}
	return fmt.Sprintf("Arc(%d+%d)", a.Start, a.Length)
}

// ArcSet is a union of ArcIntervals, e.g. the combined claim of every
// agent a peer hosts.
type ArcSet struct {
	intervals []ArcInterval
}

// NewArcSet builds a set from the given intervals, dropping empty ones.
func NewArcSet(intervals ...ArcInterval) ArcSet {
	var s ArcSet
	for _, iv := range intervals {
		if !iv.Empty() {
			s.intervals = append(s.intervals, iv)
		}
	}
	return s
}

// Intervals returns the set's member intervals.
func (s ArcSet) Intervals() []ArcInterval {
	return s.intervals
}

// Empty reports whether the set claims no part of the keyspace.
func (s ArcSet) Empty() bool {
	return len(s.intervals) == 0
}

// Contains reports whether loc falls within any member interval.
func (s ArcSet) Contains(loc uint32) bool {
	for _, iv := range s.intervals {
		if iv.Contains(loc) {
			return true
		}
	}
	return false
}

// Overlaps reports whether s and other share any point on the ring.
func (s ArcSet) Overlaps(other ArcSet) bool {
	if s.Empty() || other.Empty() {
		return false
	}
	for _, a := range s.intervals {
		for _, b := range other.intervals {
			if a.Overlaps(b) {
				return true
			}
		}
	}
	return false
}

// Overlaps reports whether a and b share any point on the ring. Two
// empty intervals, or an interval against an empty one, never overlap; a
// full interval overlaps anything non-empty. Checking b's start against a
// alone is not enough: a can fully contain b (or vice versa) without
// either interval's start point falling inside the other, so both
// directions are tested.
func (a ArcInterval) Overlaps(b ArcInterval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	if a.Full() || b.Full() {
		return true
	}
	bStartRel := (uint64(b.Start) - uint64(a.Start)) & 0xFFFFFFFF
	if bStartRel < a.Length {
		return true
	}
	aStartRel := (uint64(a.Start) - uint64(b.Start)) & 0xFFFFFFFF
	return aStartRel < b.Length
}

// Intersect computes the common arc set between two peers' claims — the
// set of locations both sides consider relevant to exchange. This
// samples both sets' boundary points and keeps contiguous runs covered
// by both, which is sufficient for the disjoint-interval unions agents
// produce in practice and avoids needing exact interval-clipping
// arithmetic over the wrapping ring.
func (s ArcSet) Intersect(other ArcSet) ArcSet {
	if s.Empty() || other.Empty() {
		return ArcSet{}
	}
	boundaries := map[uint32]struct{}{0: {}}
	for _, iv := range append(append([]ArcInterval{}, s.intervals...), other.intervals...) {
		if iv.Full() {
			continue
		}
		boundaries[iv.Start] = struct{}{}
		boundaries[uint32((uint64(iv.Start)+iv.Length)&0xFFFFFFFF)] = struct{}{}
	}
	points := make([]uint32, 0, len(boundaries))
	for p := range boundaries {
		points = append(points, p)
	}
	sortUint32s(points)
	if len(points) == 0 {
		points = []uint32{0}
	}

	var out []ArcInterval
	for i, start := range points {
		var end uint64
		if i+1 < len(points) {
			end = uint64(points[i+1])
		} else {
			end = FullArcLength
		}
		length := end - uint64(start)
		if length == 0 {
			continue
		}
		mid := uint32((uint64(start) + length/2) & 0xFFFFFFFF)
		if s.Contains(mid) && other.Contains(mid) {
			out = append(out, ArcInterval{Start: start, Length: length})
		}
	}
	return coalesce(out)
}

// coalesce merges adjacent intervals produced by Intersect's boundary scan
// so the resulting set has one member per contiguous covered run. A run
// that wraps past the top of the ring stays split into two members at
// location 0.
func coalesce(intervals []ArcInterval) ArcSet {
	if len(intervals) == 0 {
		return ArcSet{}
	}
	sortIntervalsByStart(intervals)
	merged := []ArcInterval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		lastEnd := (uint64(last.Start) + last.Length) & 0xFFFFFFFF
		if uint32(lastEnd) == iv.Start {
			last.Length += iv.Length
		} else {
			merged = append(merged, iv)
		}
	}
	return ArcSet{intervals: merged}
}

func sortUint32s(xs []uint32) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func sortIntervalsByStart(xs []ArcInterval) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1].Start > xs[j].Start; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
