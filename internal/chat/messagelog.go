package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/rmaklakov/finchatui/internal/auth"
)

// API is the chat collaborator consumed by MessageLog.
type API interface {
	ListMessages(ctx context.Context, cred auth.Credential, sessionID string) ([]Message, error)
	SendMessage(ctx context.Context, cred auth.Credential, sessionID, text string) (*Exchange, error)
}

// MessageLog owns the message history of the currently selected session.
// The buffer is discarded and replaced on every selection change; histories
// of other sessions are never cached.
//
// Every load and send is tagged with the selection generation it was issued
// under. A completion whose generation no longer matches the current one is
// discarded, so a result for session A can never be committed to session B's
// visible buffer no matter how the network interleaves.
type MessageLog struct {
	mu    sync.Mutex
	api   API
	guard *auth.Guard

	sessionID string
	messages  []Message
	gen       uint64 // bumped on every selection change
	sendGen   uint64 // last send wins among overlapping sends
	sending   bool
}

func NewMessageLog(api API, guard *auth.Guard) *MessageLog {
	return &MessageLog{api: api, guard: guard}
}

// SessionID returns the id of the session the buffer belongs to, or ""
// when nothing is selected.
func (l *MessageLog) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// Sending reports whether a send is in flight, so a front-end can disable
// input instead of queueing.
func (l *MessageLog) Sending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sending
}

// Messages returns a copy of the visible buffer.
func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Reset points the log at a freshly created session with an empty history,
// without a round trip. Any in-flight load or send becomes stale.
func (l *MessageLog) Reset(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beginSelectionLocked(sessionID)
}

// Load replaces the buffer with the history of sessionID. If the selection
// changes while the fetch is in flight the result is discarded on arrival.
func (l *MessageLog) Load(ctx context.Context, sessionID string) error {
	cred, err := l.guard.Require()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.beginSelectionLocked(sessionID)
	gen := l.gen
	l.mu.Unlock()

	msgs, err := l.api.ListMessages(ctx, cred, sessionID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		slog.Debug("discarding stale history load",
			slog.String("session_id", sessionID),
			slog.String("active_session_id", l.sessionID),
		)
		return nil
	}
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			l.guard.HandleRejected()
		}
		slog.Error("failed to load session history",
			slog.String("session_id", sessionID), "error", err)
		return err
	}
	l.messages = append(l.messages[:0], msgs...)
	slog.Debug("session history loaded",
		slog.String("session_id", sessionID),
		slog.Int("count", len(msgs)),
	)
	return nil
}

// Send optimistically appends text as a pending user message, issues the
// send, and on confirmation replaces the pending entry with the two
// authoritative messages returned by the server. On failure the pending
// entry is removed and the buffer is left exactly as it was before the
// call. Overlapping sends on the same session resolve last-call-wins: a
// superseded send's result is discarded when it arrives.
//
// The returned exchange is the pair committed to the buffer; it is nil
// when the result was discarded as stale, so a caller can tell a
// confirmed delivery from a no-op.
func (l *MessageLog) Send(ctx context.Context, text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	cred, err := l.guard.Require()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.sessionID == "" {
		l.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	sessionID := l.sessionID
	gen := l.gen
	l.sendGen++
	sendGen := l.sendGen
	l.dropPendingLocked()
	pending := NewPendingMessage(sessionID, text)
	l.messages = append(l.messages, pending)
	l.sending = true
	l.mu.Unlock()

	exchange, err := l.api.SendMessage(ctx, cred, sessionID, text)

	l.mu.Lock()
	defer l.mu.Unlock()

	// The global auth reaction applies even when the result itself is stale.
	if err != nil && errors.Is(err, auth.ErrUnauthenticated) {
		l.guard.HandleRejected()
	}

	if l.gen != gen || l.sessionID != sessionID {
		// Switched away mid-flight; the buffer this send targeted is gone.
		slog.Debug("discarding send result for deselected session",
			slog.String("session_id", sessionID))
		return nil, nil
	}
	if l.sendGen != sendGen {
		// A later send superseded this one and already dropped its pending
		// entry; nothing to commit or roll back.
		return nil, nil
	}

	l.sending = false
	l.removeMessageLocked(pending.ID)
	if err != nil {
		slog.Error("failed to send message",
			slog.String("session_id", sessionID), "error", err)
		return nil, err
	}
	l.messages = append(l.messages, exchange.User, exchange.Assistant)
	return exchange, nil
}

// beginSelectionLocked retargets the log and invalidates all in-flight
// loads and sends.
func (l *MessageLog) beginSelectionLocked(sessionID string) {
	l.gen++
	l.sendGen++
	l.sessionID = sessionID
	l.messages = nil
	l.sending = false
}

// dropPendingLocked removes the pending message, if any. There is at most
// one and it is always the last element.
func (l *MessageLog) dropPendingLocked() {
	if n := len(l.messages); n > 0 && l.messages[n-1].Pending {
		l.messages = l.messages[:n-1]
	}
}

func (l *MessageLog) removeMessageLocked(id string) {
	for i, m := range l.messages {
		if m.ID == id {
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			return
		}
	}
}
