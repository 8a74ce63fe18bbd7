package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rmaklakov/finchatui/internal/chat"
)

// Messages is a local archive of confirmed messages
type Messages struct {
	db *sqlx.DB
}

// NewMessages creates a new Messages archive
func NewMessages(db *sqlx.DB) (*Messages, error) {
	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	)
	`
	if _, err := db.Exec(createMessagesTable); err != nil {
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &Messages{db: db}, nil
}

// ReadBySessionID returns archived messages for a specific session_id,
// oldest first
func (m *Messages) ReadBySessionID(sessionID string) ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.Select(&messages, "SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for session_id %s: %w", sessionID, err)
	}

	slog.Debug("read messages by session_id",
		slog.String("session_id", sessionID),
		slog.Int("count", len(messages)),
	)
	return messages, nil
}

// Write writes a confirmed message to the archive. Pending messages are
// rejected: the archive mirrors server-confirmed state only.
func (m *Messages) Write(message chat.Message) error {
	if message.Pending {
		return fmt.Errorf("refusing to archive pending message %s", message.ID)
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	insertQuery := "INSERT OR IGNORE INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := m.db.Exec(insertQuery, message.ID, message.SessionID, message.Role, message.Content, message.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message %+v: %w", message, err)
	}

	slog.Debug("message archived",
		slog.String("id", message.ID),
		slog.String("session_id", message.SessionID),
		slog.String("role", string(message.Role)),
		slog.Time("created_at", message.CreatedAt),
	)
	return nil
}
