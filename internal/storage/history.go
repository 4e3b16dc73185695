package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a history entry does not exist.
var ErrNotFound = errors.New("session not found")

// historyNamespace seeds the name-based IDs of history entries, so every
// tab reporting the same session yields the same row.
var historyNamespace = uuid.MustParse("6f1c3a52-9c0e-4d8b-a3c4-2f6e1b7d9a10")

// SessionRecord is one finished study session.
type SessionRecord struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	// Duration is the planned length in seconds.
	Duration int `json:"duration"`
	// Studied is the number of seconds that actually elapsed.
	Studied   int  `json:"studied"`
	Completed bool `json:"completed"`
}

// Summary aggregates history since a point in time.
type Summary struct {
	Sessions       int `json:"sessions"`
	Completed      int `json:"completed"`
	StudiedSeconds int `json:"studiedSeconds"`
}

// SessionID returns the stable ID of the session that started at
// startedAt with the given planned duration.
func SessionID(startedAt time.Time, duration int) string {
	key := strconv.FormatInt(startedAt.UnixMilli(), 10) + "/" + strconv.Itoa(duration)
	return uuid.NewSHA1(historyNamespace, []byte(key)).String()
}

// HistoryStore persists finished sessions in SQLite.
type HistoryStore struct {
	db     *sql.DB
	dbPath string
}

// OpenHistory creates or opens the history database at dbPath.
func OpenHistory(dbPath string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &HistoryStore{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (store *HistoryStore) Close() error {
	return store.db.Close()
}

// Path returns the database file path.
func (store *HistoryStore) Path() string {
	return store.dbPath
}

func (store *HistoryStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		studied INTEGER NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_ended ON sessions(ended_at);
	`
	_, err := store.db.Exec(schema)
	return err
}

// Record stores a finished session. An empty ID is derived from the
// start time and duration; recording the same session twice keeps the
// first entry.
func (store *HistoryStore) Record(ctx context.Context, record SessionRecord) (SessionRecord, error) {
	if record.Duration <= 0 {
		return record, fmt.Errorf("record session: duration must be positive, got %d", record.Duration)
	}
	if record.ID == "" {
		record.ID = SessionID(record.StartedAt, record.Duration)
	}
	record.Studied = min(max(record.Studied, 0), record.Duration)

	_, err := store.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, started_at, ended_at, duration, studied, completed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.StartedAt.UnixMilli(),
		record.EndedAt.UnixMilli(),
		record.Duration,
		record.Studied,
		record.Completed,
	)
	if err != nil {
		return record, fmt.Errorf("record session: %w", err)
	}
	return record, nil
}

// Get returns the session with id, or ErrNotFound.
func (store *HistoryStore) Get(ctx context.Context, id string) (SessionRecord, error) {
	row := store.db.QueryRowContext(ctx, `
		SELECT id, started_at, ended_at, duration, studied, completed
		FROM sessions WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return record, nil
}

// Recent returns up to limit sessions, newest first.
func (store *HistoryStore) Recent(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := store.db.QueryContext(ctx, `
		SELECT id, started_at, ended_at, duration, studied, completed
		FROM sessions ORDER BY ended_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	records := make([]SessionRecord, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return records, nil
}

// Delete removes the session with id, or returns ErrNotFound.
func (store *HistoryStore) Delete(ctx context.Context, id string) error {
	result, err := store.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Summarize aggregates sessions that ended at or after since.
func (store *HistoryStore) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	var summary Summary
	err := store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(completed), 0), COALESCE(SUM(studied), 0)
		FROM sessions WHERE ended_at >= ?`, since.UnixMilli()).
		Scan(&summary.Sessions, &summary.Completed, &summary.StudiedSeconds)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize sessions: %w", err)
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (SessionRecord, error) {
	var (
		record             SessionRecord
		startedAt, endedAt int64
		completed          int
	)
	if err := row.Scan(&record.ID, &startedAt, &endedAt, &record.Duration, &record.Studied, &completed); err != nil {
		return SessionRecord{}, err
	}
	record.StartedAt = time.UnixMilli(startedAt)
	record.EndedAt = time.UnixMilli(endedAt)
	record.Completed = completed != 0
	return record, nil
}
