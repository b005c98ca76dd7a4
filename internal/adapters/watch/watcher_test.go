package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blobName = "snapshot.sous"

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()

	w, err := NewWatcher(WithDebounce(50 * time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(dir, blobName))
	t.Cleanup(func() { _ = w.Stop() })

	return w
}

// waitSignal reports whether a change signal arrives within the window.
func waitSignal(ch <-chan struct{}, within time.Duration) bool {
	select {
	case _, ok := <-ch:
		return ok
	case <-time.After(within):
		return false
	}
}

func TestNewWatcher(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.False(t, w.IsRunning())
	assert.Equal(t, DefaultDebounce, w.debounce)

	// Stop before Start is a no-op
	require.NoError(t, w.Stop())
}

func TestWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	require.NoError(t, err)

	require.NoError(t, w.Start(dir, blobName))
	assert.True(t, w.IsRunning())

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// Channels are closed after Stop
	_, ok := <-w.Changes()
	assert.False(t, ok)
	_, ok2 := <-w.Errors()
	assert.False(t, ok2)
}

func TestWatcher_StartAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	err := w.Start(dir, blobName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestWatcher_StartMissingDirectory(t *testing.T) {
	w, err := NewWatcher()
	require.NoError(t, err)

	err = w.Start(filepath.Join(t.TempDir(), "missing"), blobName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch shared directory")
}

func TestWatcher_SignalsBlobWrite(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	path := filepath.Join(dir, blobName)
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	assert.True(t, waitSignal(w.Changes(), 2*time.Second), "expected a change signal after blob write")
}

func TestWatcher_SignalsRenameIntoPlace(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	// Blob writes land in a temp file first, then rename into place
	tmp := filepath.Join(dir, ".snapshot.sous-1234.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v1"), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, blobName)))

	assert.True(t, waitSignal(w.Changes(), 2*time.Second), "expected a change signal after rename into place")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".snapshot.sous-99.tmp"), []byte("x"), 0o644))

	assert.False(t, waitSignal(w.Changes(), 300*time.Millisecond), "unrelated files must not signal")

	// The watcher is still alive and picks up the real blob
	require.NoError(t, os.WriteFile(filepath.Join(dir, blobName), []byte("v1"), 0o644))
	assert.True(t, waitSignal(w.Changes(), 2*time.Second))
}

func TestWatcher_CoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	path := filepath.Join(dir, blobName)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
	}

	assert.True(t, waitSignal(w.Changes(), 2*time.Second), "expected one signal for the burst")
	assert.False(t, waitSignal(w.Changes(), 300*time.Millisecond), "burst must coalesce into a single signal")
}

func TestWatcher_SignalsBlobRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, blobName)
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	w := newTestWatcher(t, dir)

	require.NoError(t, os.Remove(path))
	assert.True(t, waitSignal(w.Changes(), 2*time.Second), "expected a change signal after blob removal")
}
