package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/rmaklakov/finchatui/internal/chat"
	"github.com/rmaklakov/finchatui/storage"
)

// archive mirrors server-confirmed state into the local sqlite history.
// Failures are logged and swallowed: the archive is a convenience, not a
// source of truth.
type archive struct {
	sessions *storage.Sessions
	messages *storage.Messages
	alerts   *storage.Alerts
}

func newArchive(db *sqlx.DB) (*archive, error) {
	sessions, err := storage.NewSessions(db)
	if err != nil {
		return nil, fmt.Errorf("init sessions archive: %w", err)
	}
	messages, err := storage.NewMessages(db)
	if err != nil {
		return nil, fmt.Errorf("init messages archive: %w", err)
	}
	alerts, err := storage.NewAlerts(db)
	if err != nil {
		return nil, fmt.Errorf("init alerts archive: %w", err)
	}
	return &archive{sessions: sessions, messages: messages, alerts: alerts}, nil
}

func (a *archive) recordSession(s chat.Session) {
	if err := a.sessions.Write(s); err != nil {
		slog.Error("failed to archive session", "error", err)
	}
}

func (a *archive) recordSessions(sessions []chat.Session) {
	for _, s := range sessions {
		a.recordSession(s)
	}
}

func (a *archive) removeSession(id string) {
	if err := a.sessions.Delete(id); err != nil {
		slog.Error("failed to remove archived session", "error", err)
	}
}

func (a *archive) recordExchange(user, assistant chat.Message) {
	for _, m := range []chat.Message{user, assistant} {
		if m.Pending {
			continue
		}
		if err := a.messages.Write(m); err != nil {
			slog.Error("failed to archive message", "error", err)
		}
	}
}
