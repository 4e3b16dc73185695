package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"studytimer/internal/core/model"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultSettleDelay = 300 * time.Millisecond

// SettingsWatcher reloads the settings file whenever it changes on disk
// and hands the result to a callback. The parent directory is watched so
// editors that replace the file on save are still observed.
type SettingsWatcher struct {
	path     string
	onChange func(model.Settings)
	logger   *zap.Logger
	settle   time.Duration

	mu       sync.Mutex
	pending  bool
	lastSeen time.Time
	reloads  int
}

// NewSettingsWatcher creates a watcher for path. A nil logger is replaced
// with a no-op logger.
func NewSettingsWatcher(path string, onChange func(model.Settings), logger *zap.Logger) *SettingsWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsWatcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		logger:   logger.With(zap.String("settings", path)),
		settle:   defaultSettleDelay,
	}
}

// Reloads returns how many times the callback has been invoked.
func (watcher *SettingsWatcher) Reloads() int {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	return watcher.reloads
}

// Run watches until ctx is done.
func (watcher *SettingsWatcher) Run(ctx context.Context) error {
	dir := filepath.Dir(watcher.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	watcher.logger.Debug("Watching settings file")

	settleTicker := time.NewTicker(watcher.settle / 3)
	defer settleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			watcher.handleEvent(event)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			watcher.logger.Warn("Settings watcher error", zap.Error(err))

		case <-settleTicker.C:
			watcher.reloadIfSettled()
		}
	}
}

func (watcher *SettingsWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != watcher.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	watcher.mu.Lock()
	watcher.pending = true
	watcher.lastSeen = time.Now()
	watcher.mu.Unlock()
}

// reloadIfSettled coalesces a burst of writes into one reload.
func (watcher *SettingsWatcher) reloadIfSettled() {
	watcher.mu.Lock()
	if !watcher.pending || time.Since(watcher.lastSeen) < watcher.settle {
		watcher.mu.Unlock()
		return
	}
	watcher.pending = false
	watcher.mu.Unlock()

	settings, err := LoadSettingsFile(watcher.path)
	if err != nil {
		watcher.logger.Warn("Keeping previous settings", zap.Error(err))
		return
	}

	watcher.mu.Lock()
	watcher.reloads++
	watcher.mu.Unlock()

	watcher.logger.Info("Settings reloaded")
	if watcher.onChange != nil {
		watcher.onChange(settings)
	}
}
