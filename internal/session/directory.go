// Package session owns the ordered collection of chat sessions for the
// logged-in user and the lifecycle rules around it: most-recently-updated
// ordering, a single active selection, and the guarantee that an
// authenticated user is never left with zero sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rmaklakov/finchatui/internal/auth"
	"github.com/rmaklakov/finchatui/internal/chat"
)

// API is the session collaborator consumed by Directory.
type API interface {
	ListSessions(ctx context.Context, cred auth.Credential) ([]chat.Session, error)
	CreateSession(ctx context.Context, cred auth.Credential, title string) (*chat.Session, error)
	DeleteSession(ctx context.Context, cred auth.Credential, id string) error
}

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Directory owns the session collection. Sessions are kept newest-first by
// last update; exactly one of them, or none during initial load, is active.
//
// Every local mutation bumps a generation counter. A refresh commits its
// result only if the generation it was issued under is still current, so a
// list response that left the server before a delete was acknowledged can
// never resurrect the deleted session.
type Directory struct {
	mu           sync.Mutex
	api          API
	guard        *auth.Guard
	defaultTitle string

	state    State
	sessions []chat.Session
	activeID string
	gen      uint64
}

func NewDirectory(api API, guard *auth.Guard, defaultTitle string) *Directory {
	return &Directory{
		api:          api,
		guard:        guard,
		defaultTitle: defaultTitle,
	}
}

func (d *Directory) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Sessions returns a copy of the ordered collection, newest-first.
func (d *Directory) Sessions() []chat.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]chat.Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Active returns the active session, if one is selected.
func (d *Directory) Active() (chat.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.ID == d.activeID {
			return s, true
		}
	}
	return chat.Session{}, false
}

// Refresh fetches the session list. On a transient failure the collection
// keeps its previous in-memory value and the error is surfaced, never
// retried automatically. A result that arrives after a create or delete
// has mutated the collection is discarded.
func (d *Directory) Refresh(ctx context.Context) error {
	cred, err := d.guard.Require()
	if err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.state
	d.state = StateLoading
	gen := d.gen
	d.mu.Unlock()

	sessions, err := d.api.ListSessions(ctx, cred)

	d.mu.Lock()
	if d.gen != gen {
		// A create or delete was acknowledged while this list was in
		// flight; its snapshot is stale and must not win.
		if d.state == StateLoading {
			d.state = StateReady
		}
		d.mu.Unlock()
		slog.Debug("discarding stale session list refresh")
		return nil
	}
	if err != nil {
		d.state = prev
		d.mu.Unlock()
		if errors.Is(err, auth.ErrUnauthenticated) {
			d.guard.HandleRejected()
		}
		slog.Error("failed to refresh session list", "error", err)
		return err
	}

	sortSessions(sessions)
	d.sessions = sessions
	d.state = StateReady
	if !d.containsLocked(d.activeID) {
		d.selectMostRecentLocked()
	}
	d.mu.Unlock()

	return d.ensurePopulated(ctx)
}

// Create inserts a new session at the head of the collection and makes it
// the active selection.
func (d *Directory) Create(ctx context.Context, title string) (*chat.Session, error) {
	cred, err := d.guard.Require()
	if err != nil {
		return nil, err
	}

	created, err := d.api.CreateSession(ctx, cred, title)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			d.guard.HandleRejected()
		}
		slog.Error("failed to create session", "error", err)
		return nil, err
	}

	d.mu.Lock()
	d.gen++
	d.sessions = append([]chat.Session{*created}, d.sessions...)
	d.activeID = created.ID
	d.state = StateReady
	d.mu.Unlock()

	slog.Info("session created",
		slog.String("id", created.ID),
		slog.String("title", created.Title),
	)
	return created, nil
}

// Delete removes a session. If it was the active selection the most recent
// remaining session is selected instead; deleting the last session creates
// a replacement with the default title, so the collection never ends up
// empty while the user is authenticated.
func (d *Directory) Delete(ctx context.Context, id string) error {
	cred, err := d.guard.Require()
	if err != nil {
		return err
	}

	if err := d.api.DeleteSession(ctx, cred, id); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			d.guard.HandleRejected()
		}
		slog.Error("failed to delete session", slog.String("id", id), "error", err)
		return err
	}

	d.mu.Lock()
	d.gen++
	for i, s := range d.sessions {
		if s.ID == id {
			d.sessions = append(d.sessions[:i], d.sessions[i+1:]...)
			break
		}
	}
	if d.activeID == id {
		d.selectMostRecentLocked()
	}
	d.mu.Unlock()

	slog.Info("session deleted", slog.String("id", id))
	return d.ensurePopulated(ctx)
}

// Select makes an existing session the active one.
func (d *Directory) Select(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.containsLocked(id) {
		return fmt.Errorf("unknown session %q", id)
	}
	d.activeID = id
	return nil
}

// Touch bumps a session's last-updated time after a confirmed message and
// restores newest-first order.
func (d *Directory) Touch(id string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.sessions {
		if d.sessions[i].ID == id {
			d.sessions[i].UpdatedAt = at
			break
		}
	}
	sortSessions(d.sessions)
}

// ensurePopulated enforces the single post-condition behind both the
// reselect-on-delete and create-if-empty rules: once the directory is
// Ready and the user is authenticated, it holds at least one session and
// an active selection.
func (d *Directory) ensurePopulated(ctx context.Context) error {
	d.mu.Lock()
	empty := d.state == StateReady && len(d.sessions) == 0
	d.mu.Unlock()
	if !empty || !d.guard.Authenticated() {
		return nil
	}
	slog.Info("session directory empty, creating default session",
		slog.String("title", d.defaultTitle))
	_, err := d.Create(ctx, d.defaultTitle)
	return err
}

func (d *Directory) containsLocked(id string) bool {
	for _, s := range d.sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (d *Directory) selectMostRecentLocked() {
	if len(d.sessions) == 0 {
		d.activeID = ""
		return
	}
	d.activeID = d.sessions[0].ID
}

func sortSessions(sessions []chat.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}
