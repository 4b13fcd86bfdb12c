package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"rollsum/internal/conversation"
)

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("session not found")

// TimeLayout is the format of created_at and updated_at. It matches the
// column default strftime('%Y-%m-%dT%H:%M:%fZ','now') so timestamps written
// by SQLite and by SaveState order correctly as text.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// Store handles SQLite persistence for sessions and their turns.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a SQLite database at the given path and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps WAL mode and foreign keys on the same handle
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		variant     TEXT NOT NULL,
		summary     TEXT NOT NULL DEFAULT '',
		revision    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);
	CREATE TABLE IF NOT EXISTS turns (
		session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		position    INTEGER NOT NULL,
		role        TEXT NOT NULL,
		content     TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_position ON turns(session_id, position);`
	_, err := s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record is the persisted form of one session.
type Record struct {
	ID        string
	Variant   string
	Summary   string
	Revision  int
	Turns     []conversation.Turn
	CreatedAt string
	UpdatedAt string
}

// CreateSession creates a new session record.
func (s *Store) CreateSession(ctx context.Context, id, variant string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, variant) VALUES (?, ?)",
		id, variant,
	)
	return err
}

// SessionExists checks if a session with the given ID exists.
func (s *Store) SessionExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

// ListSessions returns session ids, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM sessions ORDER BY updated_at DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveState replaces the persisted turns and summary of a session in one transaction.
func (s *Store) SaveState(ctx context.Context, id string, turns []conversation.Turn, summary string, revision int) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET summary = ?, revision = ?, updated_at = ? WHERE id = ?",
		summary, revision, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO turns (session_id, seq, position, role, content) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, t := range turns {
		if _, err = stmt.ExecContext(ctx, id, int64(t.ID), i, string(t.Role), t.Content); err != nil {
			return fmt.Errorf("insert turn #%d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// LoadSession reads a session and its turns in stored order.
func (s *Store) LoadSession(ctx context.Context, id string) (*Record, error) {
	rec := &Record{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT variant, summary, revision, created_at, updated_at FROM sessions WHERE id = ?", id,
	).Scan(&rec.Variant, &rec.Summary, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, role, content FROM turns WHERE session_id = ? ORDER BY position ASC", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			seq  int64
			role string
			t    conversation.Turn
		)
		if err := rows.Scan(&seq, &role, &t.Content); err != nil {
			return nil, err
		}
		t.ID = conversation.TurnID(seq)
		t.Role = conversation.Role(role)
		rec.Turns = append(rec.Turns, t)
	}
	return rec, rows.Err()
}

// DeleteSession removes a session and its turns.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}
