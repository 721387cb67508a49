// Package gossipconfig loads gossip.Config from a TOML file, a
// convenience edge-of-main layer built on github.com/BurntSushi/toml.
package gossipconfig

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Roemello4/holochain/gossip"
)

// file mirrors gossip.Config field-for-field but with TOML-friendly
// primitive types (milliseconds instead of time.Duration), so the file on
// disk stays plain numbers rather than requiring Go duration syntax.
type file struct {
	RoundTimeoutMs     int64 `toml:"round_timeout_ms"`
	InitiatePeriodMs   int64 `toml:"initiate_period_ms"`
	OpPartitions       int   `toml:"op_partitions"`
	MaxMissingOpsBatch int   `toml:"max_missing_ops_batch"`
	MaxOpsPerQuery     int   `toml:"max_ops_per_query"`
	IncludeLimboOps    bool  `toml:"include_limbo_ops"`
	ErrorCooldownMs    int64 `toml:"error_cooldown_ms"`
	MaxTriggers        uint8 `toml:"max_triggers"`
}

// Load parses path into a gossip.Config, starting from gossip.DefaultConfig
// so a partial file only overrides the fields it sets.
func Load(path string) (gossip.Config, error) {
	cfg := gossip.DefaultConfig()

	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return gossip.Config{}, err
	}

	if f.RoundTimeoutMs != 0 {
		cfg.RoundTimeoutMs = f.RoundTimeoutMs
	}
	if f.InitiatePeriodMs != 0 {
		cfg.InitiatePeriod = time.Duration(f.InitiatePeriodMs) * time.Millisecond
	}
	if f.OpPartitions != 0 {
		cfg.OpPartitions = f.OpPartitions
	}
	if f.MaxMissingOpsBatch != 0 {
		cfg.MaxMissingOpsBatch = f.MaxMissingOpsBatch
	}
	if f.MaxOpsPerQuery != 0 {
		cfg.MaxOpsPerQuery = f.MaxOpsPerQuery
	}
	cfg.IncludeLimboOps = f.IncludeLimboOps
	if f.ErrorCooldownMs != 0 {
		cfg.ErrorCooldown = time.Duration(f.ErrorCooldownMs) * time.Millisecond
	}
	if f.MaxTriggers != 0 {
		cfg.MaxTriggers = f.MaxTriggers
	}
	return cfg, nil
}
