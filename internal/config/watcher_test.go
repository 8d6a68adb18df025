package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_FiresOnWrite(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reward_amount: 50\n"), 0o644))

	var fired atomic.Int64
	w, err := NewWatcher(path, func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// Give the watch loop a moment to register
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("reward_amount: 75\n"), 0o644))

	assert.Eventually(t, func() bool {
		return fired.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reward_amount: 50\n"), 0o644))

	var fired atomic.Int64
	w, err := NewWatcher(path, func() { fired.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "other.yaml"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int64(0), fired.Load())
}

func TestWatcher_StartStopIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	w, err := NewWatcher(path, func() {})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
