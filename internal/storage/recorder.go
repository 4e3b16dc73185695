package storage

import (
	"context"

	"studytimer/internal/core/countdown"

	"go.uber.org/zap"
)

// SessionRecorder turns countdown notifications into history entries.
type SessionRecorder struct {
	store  *HistoryStore
	logger *zap.Logger
}

// NewSessionRecorder creates a recorder backed by store.
func NewSessionRecorder(store *HistoryStore, logger *zap.Logger) *SessionRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRecorder{store: store, logger: logger}
}

// Observe records sessionEnd and stopped notifications and ignores the
// rest. Failures are logged; the countdown keeps running without history.
func (recorder *SessionRecorder) Observe(ctx context.Context, event countdown.Notification) {
	record, ok := RecordFromNotification(event)
	if !ok {
		return
	}
	saved, err := recorder.store.Record(ctx, record)
	if err != nil {
		recorder.logger.Warn("Failed to record session", zap.Error(err))
		return
	}
	recorder.logger.Debug("Session recorded",
		zap.String("id", saved.ID), zap.Bool("completed", saved.Completed))
}

// Run observes events until the channel is closed or ctx is done.
func (recorder *SessionRecorder) Run(ctx context.Context, events <-chan countdown.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			recorder.Observe(ctx, event)
		}
	}
}

// RecordFromNotification maps a session-ending notification to a history
// entry. Immediate ends of zero-length sessions produce no entry.
func RecordFromNotification(event countdown.Notification) (SessionRecord, bool) {
	if event.Duration <= 0 || event.StartedAt.IsZero() {
		return SessionRecord{}, false
	}
	switch event.Type {
	case countdown.NotifySessionEnd:
		return SessionRecord{
			StartedAt: event.StartedAt,
			EndedAt:   event.Timestamp,
			Duration:  event.Duration,
			Studied:   event.Duration,
			Completed: true,
		}, true
	case countdown.NotifyStopped:
		return SessionRecord{
			StartedAt: event.StartedAt,
			EndedAt:   event.Timestamp,
			Duration:  event.Duration,
			Studied:   event.Duration - event.TimeLeft,
		}, true
	default:
		return SessionRecord{}, false
	}
}
