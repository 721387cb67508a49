package gossip

import "time"

// Config carries every tuning parameter the engine needs at construction
// time. It is a plain value passed into NewManager; nothing in this
// package reads from a package-level variable or a CLI flag.
type Config struct {
	// RoundTimeoutMs is the absolute per-round budget: a round open
	// longer than this is force-closed as an error by the sweeper.
	RoundTimeoutMs int64

	// InitiatePeriod is how often the initiation loop ticks.
	InitiatePeriod time.Duration

	// OpPartitions is how many Ops-bloom messages a side emits per round.
	OpPartitions int

	// MaxMissingOpsBatch bounds how many op payloads one MissingOps frame
	// carries before the reply is split across multiple frames, the last
	// bearing Finished=true.
	MaxMissingOpsBatch int

	// MaxOpsPerQuery is QueryOpHashes's maxOps argument. One query covers
	// the whole common arc set, before the hashes are split into
	// partitions.
	MaxOpsPerQuery int

	// IncludeLimboOps is threaded through to QueryOpHashes.
	IncludeLimboOps bool

	// ErrorCooldown is how long a peer whose last outcome is a recent
	// Error is excluded from initiation candidacy.
	ErrorCooldown time.Duration

	// MaxTriggers bounds how high force_initiates is allowed to climb.
	MaxTriggers uint8
}

// DefaultConfig returns the engine's standard tuning values.
func DefaultConfig() Config {
	return Config{
		RoundTimeoutMs:     60_000,
		InitiatePeriod:     time.Second,
		OpPartitions:       4,
		MaxMissingOpsBatch: 256,
		MaxOpsPerQuery:     10_000,
		IncludeLimboOps:    false,
		ErrorCooldown:      30 * time.Second,
		MaxTriggers:        2,
	}
}
