package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"studytimer/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSettingsWatcherReloadsOnWrite(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem watcher test")
	}
	path := filepath.Join(t.TempDir(), settingsFileName)
	require.NoError(t, SaveSettingsFile(path, model.DefaultSettings()))

	var (
		mu     sync.Mutex
		latest model.Settings
	)
	watcher := NewSettingsWatcher(path, func(settings model.Settings) {
		mu.Lock()
		latest = settings
		mu.Unlock()
	}, zaptest.NewLogger(t))
	watcher.settle = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	changed := model.DefaultSettings()
	changed.Countdown.HeartbeatInterval = 30 * time.Second
	require.NoError(t, SaveSettingsFile(path, changed))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest.Countdown.HeartbeatInterval == 30*time.Second
	}, 5*time.Second, 20*time.Millisecond)

	reloads := watcher.Reloads()
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, reloads, watcher.Reloads(), "unrelated files are ignored")
}

func TestSettingsWatcherKeepsPreviousOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), settingsFileName)
	require.NoError(t, os.WriteFile(path, []byte("countdown: ["), 0o644))

	called := false
	watcher := NewSettingsWatcher(path, func(model.Settings) { called = true }, zaptest.NewLogger(t))
	watcher.pending = true
	watcher.lastSeen = time.Now().Add(-time.Second)
	watcher.reloadIfSettled()

	assert.False(t, called)
	assert.Zero(t, watcher.Reloads())
}
