package gossipconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Roemello4/holochain/gossip"
)

func writeToml(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gossip.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	path := writeToml(t, `
round_timeout_ms = 5000
max_triggers = 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := gossip.DefaultConfig()
	want.RoundTimeoutMs = 5000
	want.MaxTriggers = 4
	require.Equal(t, want, cfg)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}
