package platform

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrIdleUnsupported is returned when idle detection is unavailable.
var ErrIdleUnsupported = errors.New("idle detection unsupported")

// IdleProvider returns the duration since last user input.
type IdleProvider interface {
	IdleDuration() (time.Duration, error)
}

// NewIdleProvider returns a platform-specific idle provider.
func NewIdleProvider() IdleProvider {
	return newIdleProvider()
}

// VisibilityWatcher polls an IdleProvider and calls onVisible when the
// user comes back after being away for at least the configured threshold.
type VisibilityWatcher struct {
	provider  IdleProvider
	after     time.Duration
	interval  time.Duration
	onVisible func()
	logger    *zap.Logger

	away bool
}

// NewVisibilityWatcher creates a watcher. Non-positive durations fall back
// to one minute of idleness polled every five seconds.
func NewVisibilityWatcher(provider IdleProvider, after, interval time.Duration, onVisible func(), logger *zap.Logger) *VisibilityWatcher {
	if after <= 0 {
		after = time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisibilityWatcher{
		provider:  provider,
		after:     after,
		interval:  interval,
		onVisible: onVisible,
		logger:    logger,
	}
}

// Run polls until ctx is done. It returns nil without polling further when
// the platform cannot report idle time.
func (watcher *VisibilityWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(watcher.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := watcher.poll(); err != nil {
				if errors.Is(err, ErrIdleUnsupported) {
					watcher.logger.Info("Idle detection unavailable, visibility watcher disabled")
					return nil
				}
				watcher.logger.Debug("Idle check failed", zap.Error(err))
			}
		}
	}
}

func (watcher *VisibilityWatcher) poll() error {
	idle, err := watcher.provider.IdleDuration()
	if err != nil {
		return err
	}
	if watcher.observe(idle) && watcher.onVisible != nil {
		watcher.onVisible()
	}
	return nil
}

// observe reports whether idle marks a return from being away.
func (watcher *VisibilityWatcher) observe(idle time.Duration) bool {
	if idle >= watcher.after {
		if !watcher.away {
			watcher.logger.Debug("User away", zap.Duration("idle", idle))
		}
		watcher.away = true
		return false
	}
	if !watcher.away {
		return false
	}
	watcher.away = false
	watcher.logger.Debug("User returned", zap.Duration("idle", idle))
	return true
}
