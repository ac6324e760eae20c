// Package sqlite persists meeting-history records in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/huddlehq/huddle/internal/history"
	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id       TEXT    NOT NULL,
		participants  TEXT    NOT NULL,
		started_at    INTEGER NOT NULL,
		ended_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_room_idx ON sessions (room_id, ended_at DESC)`,
}

// Store is a SQLite-backed history.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one finished session.
func (s *Store) Record(ctx context.Context, sess history.Session) error {
	names, err := json.Marshal(sess.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (room_id, participants, started_at, ended_at)
		 VALUES (?, ?, ?, ?)`,
		sess.RoomID, string(names), sess.StartedAt.Unix(), sess.EndedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]history.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, participants, started_at, ended_at
		 FROM sessions ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ForRoom returns up to limit sessions of one room, newest first.
func (s *Store) ForRoom(ctx context.Context, roomID string, limit int) ([]history.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT room_id, participants, started_at, ended_at
		 FROM sessions WHERE room_id = ? ORDER BY ended_at DESC, id DESC LIMIT ?`,
		roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query room sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows *sql.Rows) ([]history.Session, error) {
	var out []history.Session
	for rows.Next() {
		var sess history.Session
		var names string
		var started, ended int64
		if err := rows.Scan(&sess.RoomID, &names, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &sess.Participants); err != nil {
			return nil, fmt.Errorf("unmarshal participants: %w", err)
		}
		sess.StartedAt = unixTime(started)
		sess.EndedAt = unixTime(ended)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func unixTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
