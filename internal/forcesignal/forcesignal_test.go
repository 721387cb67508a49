package forcesignal

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingForcer struct {
	n int32
}

func (c *countingForcer) RecordForceInitiate() {
	atomic.AddInt32(&c.n, 1)
}

func TestWatcherTriggersOnMarkerFile(t *testing.T) {
	dir := t.TempDir()
	forcer := &countingForcer{}
	w := New(dir, forcer)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "force"), []byte("go"), 0o644))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&forcer.n) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, &countingForcer{})
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	w.Stop()
}
