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

// Package gossip implements the sharded gossip round state machine that
// synchronizes DHT op data and agent-membership records between peers.
//
// A peer hosts one or more agents, each claiming an arc of a 32-bit
// circular keyspace. The engine's job is to make sure every op whose
// location falls in an agent's arc eventually reaches that agent,
// regardless of which peer first authored it. It does this by running
// bilateral "rounds" with remote peers: exchange bloom filters over what
// each side already has, then exchange whatever the bloom says the other
// side is missing.
//
// The five pieces are, in dependency order: the bloom codec (package
// gossip/bloom), the metrics ledger (metrics.go), the round table
// (roundtable.go), the round state machine (machine.go), and the
// initiation loop (initiator.go). Manager (manager.go) wires all five
// together with a Persistence and a Transport collaborator.
package gossip
