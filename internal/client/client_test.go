package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaklakov/finchatui/internal/auth"
	"github.com/rmaklakov/finchatui/internal/chat"
	"github.com/rmaklakov/finchatui/internal/client"
	"github.com/rmaklakov/finchatui/internal/config"
)

const testToken = "test-token"

var testCred = auth.Credential{Token: testToken, UserID: "u-1"}

func newTestClient(t *testing.T, handler http.Handler) (*client.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
	}
	return client.NewClient(cfg), srv
}

func requireAuthHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
	assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
}

func TestListSessions(t *testing.T) {
	sessions := []chat.Session{
		{ID: "s-1", Title: "newer", UpdatedAt: time.Unix(10, 0).UTC()},
		{ID: "s-2", Title: "older", UpdatedAt: time.Unix(5, 0).UTC()},
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuthHeaders(t, r)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat/sessions", r.URL.Path)
		json.NewEncoder(w).Encode(sessions)
	}))

	got, err := c.ListSessions(context.Background(), testCred)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s-1", got[0].ID)
	assert.Equal(t, "older", got[1].Title)
	assert.True(t, sessions[0].UpdatedAt.Equal(got[0].UpdatedAt))
}

func TestCreateSession(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuthHeaders(t, r)
		assert.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(chat.Session{ID: "s-new", Title: body.Title})
	}))

	created, err := c.CreateSession(context.Background(), testCred, "Tax questions")
	require.NoError(t, err)
	assert.Equal(t, "s-new", created.ID)
	assert.Equal(t, "Tax questions", created.Title)
}

func TestDeleteSession(t *testing.T) {
	var path string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuthHeaders(t, r)
		assert.Equal(t, http.MethodDelete, r.Method)
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.DeleteSession(context.Background(), testCred, "s-1"))
	assert.Equal(t, "/chat/sessions/s-1", path)
}

func TestListMessages(t *testing.T) {
	history := []chat.Message{
		{ID: "m-1", SessionID: "s-1", Role: chat.RoleUser, Content: "question"},
		{ID: "m-2", SessionID: "s-1", Role: chat.RoleAssistant, Content: "answer"},
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuthHeaders(t, r)
		assert.Equal(t, "/chat/sessions/s-1/messages", r.URL.Path)
		json.NewEncoder(w).Encode(history)
	}))

	got, err := c.ListMessages(context.Background(), testCred, "s-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m-1", got[0].ID)
	assert.False(t, got[0].Pending, "the pending flag never comes from the wire")
}

func TestSendMessage(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireAuthHeaders(t, r)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/sessions/s-1/messages", r.URL.Path)

		var body struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(chat.Exchange{
			User:      chat.Message{ID: "m-1", SessionID: "s-1", Role: chat.RoleUser, Content: body.Content},
			Assistant: chat.Message{ID: "m-2", SessionID: "s-1", Role: chat.RoleAssistant, Content: "Diversify."},
		})
	}))

	exchange, err := c.SendMessage(context.Background(), testCred, "s-1", "What should I buy?")
	require.NoError(t, err)
	assert.Equal(t, "What should I buy?", exchange.User.Content)
	assert.Equal(t, chat.RoleAssistant, exchange.Assistant.Role)
}

func TestUnauthorizedMapsToErrUnauthenticated(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(client.ApiErrorResponse{Code: 401, Message: "token expired"})
	}))

	_, err := c.ListSessions(context.Background(), testCred)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "token expired")
}

func TestServerErrorMapsToErrTransient(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(client.ApiErrorResponse{Code: 500, Message: "upstream exploded"})
	}))

	_, err := c.ListMessages(context.Background(), testCred, "s-1")
	assert.ErrorIs(t, err, chat.ErrTransient)
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestNetworkFailureMapsToErrTransient(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.ListSessions(context.Background(), testCred)
	assert.ErrorIs(t, err, chat.ErrTransient)
}
