package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrEmptyMessage rejects blank send text locally; it never reaches the
	// network.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrNoActiveSession is returned when an operation needs a selected
	// session and none is.
	ErrNoActiveSession = errors.New("no active session")
	// ErrTransient marks a recoverable network or server failure. State is
	// rolled back to last-known-good and nothing is retried automatically.
	ErrTransient = errors.New("transient error")
)

// Session represents one conversation thread with independent history.
type Session struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Message is one entry in a session's append-only history. Pending is set
// only on the optimistic local copy of a user message that the server has
// not confirmed yet; it never crosses the wire.
type Message struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"sessionId"`
	Role      Role      `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	Pending   bool      `db:"-" json:"-"`
}

// NewPendingMessage builds the optimistic local copy of a user message.
func NewPendingMessage(sessionID, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
	}
}

// Exchange is the server-confirmed result of a send: the authoritative copy
// of the user message and the generated assistant reply. The client never
// invents assistant content.
type Exchange struct {
	User      Message `json:"userMessage"`
	Assistant Message `json:"aiResponse"`
}
