// Package auth owns the process-wide credential and the reaction to its
// absence or rejection: every collaborator call in the client is gated on
// Guard.Current, and any authentication-rejected response is routed back
// through Guard.HandleRejected.
package auth

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrUnauthenticated is returned when no credential is present or a
// collaborator rejected the one that was sent.
var ErrUnauthenticated = errors.New("unauthenticated")

// Credential is the bearer token plus the identity it was issued for.
// It is shared read-only across all components.
type Credential struct {
	Token  string
	UserID string
}

// Navigator is the navigation collaborator; the guard only ever asks it to
// present the login view.
type Navigator interface {
	RedirectToLogin()
}

// Guard resolves the current credential and schedules the delayed redirect
// when it is cleared by a rejection.
type Guard struct {
	mu            sync.Mutex
	cred          *Credential
	nav           Navigator
	redirectDelay time.Duration
	redirectTimer *time.Timer
}

func NewGuard(nav Navigator, redirectDelay time.Duration) *Guard {
	return &Guard{
		nav:           nav,
		redirectDelay: redirectDelay,
	}
}

// SetCredential installs the credential at login and cancels any pending
// redirect from a previous rejection.
func (g *Guard) SetCredential(cred Credential) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cred = &cred
	if g.redirectTimer != nil {
		g.redirectTimer.Stop()
		g.redirectTimer = nil
	}
	slog.Info("credential set", slog.String("user_id", cred.UserID))
}

// Current returns the credential, or ErrUnauthenticated when absent.
func (g *Guard) Current() (Credential, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cred == nil {
		return Credential{}, ErrUnauthenticated
	}
	return *g.cred, nil
}

// Require resolves the credential for an operation that cannot proceed
// without one. On absence it asks the navigation collaborator to present
// the login view immediately; there is no error for the user to read first.
func (g *Guard) Require() (Credential, error) {
	g.mu.Lock()
	if g.cred != nil {
		cred := *g.cred
		g.mu.Unlock()
		return cred, nil
	}
	g.mu.Unlock()
	g.nav.RedirectToLogin()
	return Credential{}, ErrUnauthenticated
}

// Authenticated reports whether a credential is present.
func (g *Guard) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cred != nil
}

// Clear drops the credential at logout. No redirect is scheduled; logout is
// a deliberate user action, not a failure.
func (g *Guard) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cred = nil
	if g.redirectTimer != nil {
		g.redirectTimer.Stop()
		g.redirectTimer = nil
	}
}

// HandleRejected clears the credential after a collaborator returned an
// authentication-rejected response and schedules the login redirect after
// the configured delay, so the user can read the surfaced error first.
func (g *Guard) HandleRejected() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cred = nil
	if g.redirectTimer != nil {
		// A redirect is already on its way; keep the earlier schedule.
		return
	}
	slog.Warn("credential rejected, scheduling login redirect",
		slog.Duration("delay", g.redirectDelay),
	)
	g.redirectTimer = time.AfterFunc(g.redirectDelay, func() {
		g.mu.Lock()
		g.redirectTimer = nil
		g.mu.Unlock()
		g.nav.RedirectToLogin()
	})
}
