package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var started = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHistoryRecordAndGet(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	saved, err := store.Record(ctx, SessionRecord{
		StartedAt: started,
		EndedAt:   started.Add(25 * time.Minute),
		Duration:  1500,
		Studied:   1500,
		Completed: true,
	})
	require.NoError(t, err)
	assert.Equal(t, SessionID(started, 1500), saved.ID)

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.EndedAt.Equal(started.Add(25*time.Minute)))
	assert.Equal(t, 1500, got.Studied)
	assert.True(t, got.Completed)
}

func TestHistoryGetMissingReturnsErrNotFound(t *testing.T) {
	store := openTestHistory(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(context.Background(), "missing"), ErrNotFound)
}

func TestHistoryRecordIsIdempotentPerSession(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()
	record := SessionRecord{StartedAt: started, EndedAt: started.Add(time.Minute), Duration: 60, Studied: 60, Completed: true}

	_, err := store.Record(ctx, record)
	require.NoError(t, err)
	_, err = store.Record(ctx, record)
	require.NoError(t, err)

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHistoryRecordRejectsEmptySession(t *testing.T) {
	store := openTestHistory(t)
	_, err := store.Record(context.Background(), SessionRecord{StartedAt: started})
	assert.Error(t, err)
}

func TestHistoryRecentNewestFirstAndSummary(t *testing.T) {
	store := openTestHistory(t)
	ctx := context.Background()

	for index, completed := range []bool{true, false, true} {
		begin := started.Add(time.Duration(index) * time.Hour)
		studied := 600
		if !completed {
			studied = 120
		}
		_, err := store.Record(ctx, SessionRecord{
			StartedAt: begin,
			EndedAt:   begin.Add(time.Duration(studied) * time.Second),
			Duration:  600,
			Studied:   studied,
			Completed: completed,
		})
		require.NoError(t, err)
	}

	records, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].StartedAt.Equal(started.Add(2*time.Hour)))
	assert.False(t, records[1].Completed)

	summary, err := store.Summarize(ctx, started)
	require.NoError(t, err)
	assert.Equal(t, Summary{Sessions: 3, Completed: 2, StudiedSeconds: 1320}, summary)

	summary, err = store.Summarize(ctx, started.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sessions)

	require.NoError(t, store.Delete(ctx, records[0].ID))
	_, err = store.Get(ctx, records[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
