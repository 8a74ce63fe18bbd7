package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/rmaklakov/finchatui/internal/chat"
)

// Orchestrator composes the directory with the message log so that the
// visible history always belongs to the currently active session: every
// selection change, including the implicit one after a delete, retargets
// the log before anything else can commit to it.
type Orchestrator struct {
	dir *Directory
	log *chat.MessageLog
}

func NewOrchestrator(dir *Directory, log *chat.MessageLog) *Orchestrator {
	return &Orchestrator{dir: dir, log: log}
}

func (o *Orchestrator) Directory() *Directory { return o.dir }
func (o *Orchestrator) Log() *chat.MessageLog { return o.log }

// Bootstrap performs the initial list, guarantees at least one session
// exists, and loads the active session's history.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	if err := o.dir.Refresh(ctx); err != nil {
		return err
	}
	return o.reconcile(ctx)
}

// Refresh re-lists sessions and, if the active selection moved, retargets
// the log.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if err := o.dir.Refresh(ctx); err != nil {
		return err
	}
	return o.reconcile(ctx)
}

// NewSession creates a session, makes it active, and resets the log to an
// empty history without a round trip.
func (o *Orchestrator) NewSession(ctx context.Context, title string) (*chat.Session, error) {
	created, err := o.dir.Create(ctx, title)
	if err != nil {
		return nil, err
	}
	o.log.Reset(created.ID)
	return created, nil
}

// Select switches the active session and loads its history.
func (o *Orchestrator) Select(ctx context.Context, id string) error {
	if err := o.dir.Select(id); err != nil {
		return err
	}
	return o.log.Load(ctx, id)
}

// Delete removes a session. Confirmation is the caller's concern; by the
// time this runs the user has already agreed. If the deletion moved the
// active selection, the log is retargeted at the new active session.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.dir.Delete(ctx, id); err != nil {
		return err
	}
	return o.reconcile(ctx)
}

// Send delivers text to the active session. A session's last-updated
// position moves only when an exchange was actually committed under it:
// a send discarded as stale (the user switched away, or a later send
// superseded it) bumps nothing.
func (o *Orchestrator) Send(ctx context.Context, text string) (*chat.Exchange, error) {
	exchange, err := o.log.Send(ctx, text)
	if err != nil || exchange == nil {
		return exchange, err
	}
	at := exchange.User.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	o.dir.Touch(exchange.User.SessionID, at)
	return exchange, nil
}

// reconcile retargets the log whenever it points at a session other than
// the directory's active one.
func (o *Orchestrator) reconcile(ctx context.Context) error {
	active, ok := o.dir.Active()
	if !ok {
		slog.Debug("no active session after directory change")
		return nil
	}
	if active.ID == o.log.SessionID() {
		return nil
	}
	return o.log.Load(ctx, active.ID)
}
