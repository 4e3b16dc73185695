package storage

import (
	"context"
	"testing"
	"time"

	"studytimer/internal/clock"
	"studytimer/internal/core/countdown"
	"studytimer/internal/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRecordFromNotification(t *testing.T) {
	ended := started.Add(10 * time.Minute)

	record, ok := RecordFromNotification(countdown.Notification{
		Type: countdown.NotifyStopped, TimeLeft: 900, Duration: 1500, StartedAt: started, Timestamp: ended,
	})
	require.True(t, ok)
	assert.Equal(t, 600, record.Studied)
	assert.False(t, record.Completed)

	record, ok = RecordFromNotification(countdown.Notification{
		Type: countdown.NotifySessionEnd, Duration: 1500, StartedAt: started, Timestamp: ended,
	})
	require.True(t, ok)
	assert.Equal(t, 1500, record.Studied)
	assert.True(t, record.Completed)

	_, ok = RecordFromNotification(countdown.Notification{Type: countdown.NotifySessionEnd, Timestamp: ended})
	assert.False(t, ok, "immediate end of an empty session")

	_, ok = RecordFromNotification(countdown.Notification{Type: countdown.NotifyTick, Duration: 60, StartedAt: started})
	assert.False(t, ok)
}

func TestSessionRecorderStoresFinishedSessions(t *testing.T) {
	store := openTestHistory(t)
	fake := clock.NewFake(started)
	service := countdown.New(model.DefaultCountdownConfig(), countdown.WithClock(fake))
	events := service.Subscribe(1024)
	require.NoError(t, service.Open())

	recorder := NewSessionRecorder(store, zaptest.NewLogger(t))
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Run(context.Background(), events)
	}()

	require.NoError(t, service.Start(30))
	fake.Advance(30 * time.Second)
	require.NoError(t, service.Start(60))
	fake.Advance(20 * time.Second)
	service.Stop()
	service.Close()
	<-done

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	stopped, err := store.Get(context.Background(), SessionID(started.Add(30*time.Second), 60))
	require.NoError(t, err)
	assert.False(t, stopped.Completed)
	assert.Equal(t, 20, stopped.Studied)

	completed, err := store.Get(context.Background(), SessionID(started, 30))
	require.NoError(t, err)
	assert.True(t, completed.Completed)
}

func TestSessionRecorderStoresReplacedSession(t *testing.T) {
	store := openTestHistory(t)
	fake := clock.NewFake(started)
	service := countdown.New(model.DefaultCountdownConfig(), countdown.WithClock(fake))
	events := service.Subscribe(4096)
	require.NoError(t, service.Open())

	recorder := NewSessionRecorder(store, zaptest.NewLogger(t))
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Run(context.Background(), events)
	}()

	require.NoError(t, service.Start(1500))
	fake.Advance(600 * time.Second)
	require.NoError(t, service.Start(300))
	service.Close()
	<-done

	replaced, err := store.Get(context.Background(), SessionID(started, 1500))
	require.NoError(t, err)
	assert.False(t, replaced.Completed)
	assert.Equal(t, 600, replaced.Studied)
	assert.Equal(t, started.Add(600*time.Second).UnixMilli(), replaced.EndedAt.UnixMilli())
}
