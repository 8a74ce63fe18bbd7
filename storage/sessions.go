package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rmaklakov/finchatui/internal/chat"
)

// Sessions is a local archive of the user's sessions
type Sessions struct {
	db *sqlx.DB
}

// NewSessions creates a new Sessions archive
func NewSessions(db *sqlx.DB) (*Sessions, error) {
	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
	`
	if _, err := db.Exec(createSessionsTable); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &Sessions{db: db}, nil
}

// Read returns all archived sessions, most recently updated first
func (s *Sessions) Read() ([]chat.Session, error) {
	var sessions []chat.Session
	err := s.db.Select(&sessions, "SELECT id, title, updated_at FROM sessions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	slog.Debug("read sessions",
		slog.Int("count", len(sessions)),
	)
	return sessions, nil
}

// Write upserts a session into the archive
func (s *Sessions) Write(session chat.Session) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}
	upsertQuery := `
	INSERT INTO sessions (id, title, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(upsertQuery, session.ID, session.Title, session.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert session %+v: %w", session, err)
	}

	slog.Debug("session archived",
		slog.String("id", session.ID),
		slog.String("title", session.Title),
		slog.Time("updated_at", session.UpdatedAt),
	)
	return nil
}

// Delete deletes the given session and its messages from the archive
func (s *Sessions) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete messages for session %s: %w", id, err)
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session by id %s: %w", id, err)
	}

	slog.Debug("session removed from archive",
		slog.String("id", id),
	)
	return nil
}
