package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaklakov/finchatui/internal/auth"
)

type navSpy struct {
	mu    sync.Mutex
	calls int
}

func (n *navSpy) RedirectToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func (n *navSpy) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func TestCurrentWithoutCredential(t *testing.T) {
	guard := auth.NewGuard(&navSpy{}, time.Second)

	_, err := guard.Current()
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.False(t, guard.Authenticated())
}

func TestSetCredentialThenCurrent(t *testing.T) {
	guard := auth.NewGuard(&navSpy{}, time.Second)
	guard.SetCredential(auth.Credential{Token: "tok", UserID: "u-1"})

	cred, err := guard.Current()
	require.NoError(t, err)
	assert.Equal(t, "tok", cred.Token)
	assert.Equal(t, "u-1", cred.UserID)
	assert.True(t, guard.Authenticated())
}

func TestRequireWithoutCredentialRedirectsImmediately(t *testing.T) {
	nav := &navSpy{}
	guard := auth.NewGuard(nav, time.Second)

	_, err := guard.Require()
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Equal(t, 1, nav.Calls())
}

func TestHandleRejectedSchedulesDelayedRedirect(t *testing.T) {
	nav := &navSpy{}
	guard := auth.NewGuard(nav, 30*time.Millisecond)
	guard.SetCredential(auth.Credential{Token: "tok", UserID: "u-1"})

	guard.HandleRejected()

	assert.False(t, guard.Authenticated(), "credential must be cleared at once")
	assert.Equal(t, 0, nav.Calls(), "redirect must not fire immediately")

	assert.Eventually(t, func() bool {
		return nav.Calls() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHandleRejectedKeepsEarlierSchedule(t *testing.T) {
	nav := &navSpy{}
	guard := auth.NewGuard(nav, 30*time.Millisecond)
	guard.SetCredential(auth.Credential{Token: "tok", UserID: "u-1"})

	guard.HandleRejected()
	guard.HandleRejected()

	assert.Eventually(t, func() bool {
		return nav.Calls() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, nav.Calls(), "a second rejection must not double the redirect")
}

func TestSetCredentialCancelsPendingRedirect(t *testing.T) {
	nav := &navSpy{}
	guard := auth.NewGuard(nav, 30*time.Millisecond)
	guard.SetCredential(auth.Credential{Token: "tok", UserID: "u-1"})

	guard.HandleRejected()
	guard.SetCredential(auth.Credential{Token: "tok2", UserID: "u-1"})

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, nav.Calls(), "re-login must cancel the scheduled redirect")
	assert.True(t, guard.Authenticated())
}

func TestClearDoesNotRedirect(t *testing.T) {
	nav := &navSpy{}
	guard := auth.NewGuard(nav, 10*time.Millisecond)
	guard.SetCredential(auth.Credential{Token: "tok", UserID: "u-1"})

	guard.Clear()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, nav.Calls(), "logout is deliberate, no redirect")
	assert.False(t, guard.Authenticated())
}
