// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package bloom builds and tests bloom filters over op hashes and
// agent-info signatures within a common arc set and time window (spec
// §4.1). Parameters are fixed so two peers that build a filter over the
// same set independently produce byte-identical bit layouts.
package bloom

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Domain distinguishes the two kinds of set a Filter can encode, so a
// bloom built for ops can never be silently compared against one built
// for agent-info signatures.
type Domain uint8

const (
	// OpDomain tags filters over op hashes within (common_arc_set,
	// time_window).
	OpDomain Domain = iota
	// AgentDomain tags filters over agent-info signatures within
	// common_arc_set.
	AgentDomain
)

const (
	// NumBits is the fixed size of the filter's bit field. Fixed size
	// (rather than sized to the input set) is what lets two independent
	// constructions of the same set land on identical bytes.
	NumBits = 1 << 16 // 8KiB filter
	// NumHashes is the fixed number of hash functions (k), derived from
	// the target false-positive rate for NumBits and a few thousand
	// expected members, and frozen so sender and receiver never disagree.
	NumHashes = 7
)

// headerLen is the fixed framing prepended to every encoded filter: one
// byte for Domain plus the 4-byte bit-count, so a receiver can validate a
// frame before trusting its bit field.
const headerLen = 5

// Filter is a probabilistic set-membership structure over content
// addresses (op hashes or agent-info signatures).
type Filter struct {
	domain Domain
	bits   []byte // NumBits/8 bytes
}

// Empty returns the distinguished, byte-stable empty filter for domain d:
// an all-zero bit field behind the canonical header. A receiver that
// finds nothing to request returns this value verbatim.
func Empty(d Domain) *Filter {
	return &Filter{domain: d, bits: make([]byte, NumBits/8)}
}

// New builds a filter over items (op hashes or agent-info signatures, as
// raw byte keys) for the given domain.
func New(d Domain, items [][]byte) *Filter {
	f := Empty(d)
	for _, item := range items {
		f.add(item)
	}
	return f
}

func (f *Filter) add(item []byte) {
	for _, h := range hashesFor(f.domain, item) {
		idx := h % NumBits
		f.bits[idx/8] |= 1 << (idx % 8)
	}
}

// Check reports whether item may be a member (false positives possible,
// false negatives never).
func (f *Filter) Check(item []byte) bool {
	for _, h := range hashesFor(f.domain, item) {
		idx := h % NumBits
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// Domain reports which kind of set this filter was built over.
func (f *Filter) Domain() Domain {
	return f.domain
}

// Bytes encodes the filter as a length-prefixed, self-describing frame:
// a one-byte domain tag, a 4-byte bit-count, then the bit field itself.
// The empty filter encodes to this same header plus an all-zero bit
// field.
func (f *Filter) Bytes() []byte {
	out := make([]byte, headerLen+len(f.bits))
	out[0] = byte(f.domain)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(f.bits)*8))
	copy(out[headerLen:], f.bits)
	return out
}

// Decode parses a frame produced by Bytes.
func Decode(raw []byte) (*Filter, error) {
	if len(raw) < headerLen {
		return nil, errTooShort
	}
	domain := Domain(raw[0])
	numBits := binary.BigEndian.Uint32(raw[1:5])
	body := raw[headerLen:]
	if uint32(len(body)*8) != numBits {
		return nil, errBadLength
	}
	bits := make([]byte, len(body))
	copy(bits, body)
	return &Filter{domain: domain, bits: bits}, nil
}

// NotIn returns the subset of candidates (raw byte keys) that remote does
// not claim to have — the items the remote is missing. A nil or empty
// remote is treated as the empty filter, so every candidate is reported
// missing.
func NotIn(candidates [][]byte, remote *Filter) [][]byte {
	if remote == nil {
		remote = Empty(OpDomain)
	}
	var missing [][]byte
	for _, c := range candidates {
		if !remote.Check(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// hashesFor derives NumHashes independent bit indices from item using the
// double-hashing technique (Kirsch-Mitzenmacher): two blake2b digests
// combined linearly stand in for k independent hash functions without
// computing k separate digests. The domain is folded into the hash so an
// identical item hashes differently across the two domains, even though
// Filter already tags its domain in the frame header.
func hashesFor(d Domain, item []byte) []uint64 {
	h1 := blake2b.Sum256(append([]byte{byte(d)}, item...))
	h2 := blake2b.Sum256(append([]byte{byte(d), 0xff}, item...))
	a := binary.BigEndian.Uint64(h1[:8])
	b := binary.BigEndian.Uint64(h2[:8])
	out := make([]uint64, NumHashes)
	for i := 0; i < NumHashes; i++ {
		out[i] = a + uint64(i)*b
	}
	return out
}
