// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the SQLite transcript archive.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/kestrelchat/kestrel/internal/session"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("session not archived")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    model TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix timestamp
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,         -- insertion order within the session
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    model TEXT,
    aborted INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
`

// =============================================================================
// ARCHIVE
// =============================================================================

// SessionMeta is a listing row: a session's identity without its messages.
type SessionMeta struct {
	ID           string
	Name         string
	Model        string
	MessageCount int
	UpdatedAt    time.Time
}

// Archive persists session transcripts to a SQLite database so they
// survive process restarts. The in-process Store stays authoritative;
// the archive is written on save points and read on demand.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	// SQLite supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveSession writes a full snapshot of the session, replacing any prior
// archived state. Messages still streaming are skipped; they have no
// final content yet.
func (a *Archive) SaveSession(sess session.Session) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, name, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Name, sess.Model, sess.CreatedAt.Unix(), sess.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages (id, session_id, seq, role, content, model, aborted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	for i, msg := range sess.Messages {
		if msg.IsStreaming {
			continue
		}
		aborted := 0
		if msg.Aborted {
			aborted = 1
		}
		if _, err := stmt.Exec(msg.ID, sess.ID, i, msg.Role, msg.Content,
			msg.Model, aborted, msg.Timestamp.Unix()); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	return tx.Commit()
}

// LoadSession reads one archived session with its full transcript.
func (a *Archive) LoadSession(id string) (session.Session, error) {
	var sess session.Session
	var created, updated int64

	err := a.db.QueryRow(
		"SELECT id, name, model, created_at, updated_at FROM sessions WHERE id = ?", id).
		Scan(&sess.ID, &sess.Name, &sess.Model, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	sess.CreatedAt = time.Unix(created, 0).UTC()
	sess.UpdatedAt = time.Unix(updated, 0).UTC()

	rows, err := a.db.Query(`
		SELECT id, role, content, model, aborted, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg session.Message
		var model sql.NullString
		var aborted int
		var ts int64
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &model, &aborted, &ts); err != nil {
			return session.Session{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		msg.Model = model.String
		msg.Aborted = aborted != 0
		msg.Timestamp = time.Unix(ts, 0).UTC()
		sess.Messages = append(sess.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return session.Session{}, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return sess, nil
}

// ListSessions returns archived session metadata, most recent first.
func (a *Archive) ListSessions() ([]SessionMeta, error) {
	rows, err := a.db.Query(`
		SELECT s.id, s.name, s.model, s.updated_at, COUNT(m.id)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []SessionMeta
	for rows.Next() {
		var meta SessionMeta
		var updated int64
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.Model, &updated, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		meta.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, meta)
	}
	return out, rows.Err()
}

// DeleteSession removes an archived session and its messages. Deleting an
// unknown id is a no-op, matching the in-process store.
func (a *Archive) DeleteSession(id string) error {
	if _, err := a.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}
