// Package client talks to the advisor platform's REST API. It maps HTTP
// outcomes onto the client-side error taxonomy: 401 becomes
// auth.ErrUnauthenticated, everything else that fails becomes
// chat.ErrTransient with the server's message attached.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rmaklakov/finchatui/internal/auth"
	"github.com/rmaklakov/finchatui/internal/chat"
	"github.com/rmaklakov/finchatui/internal/config"
)

const (
	jsonContentType = "application/json"
)

type ApiErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	httpClient *http.Client
	cfg        *config.Config
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        &cfg,
	}
}

// ListSessions returns the user's sessions.
func (c *Client) ListSessions(ctx context.Context, cred auth.Credential) ([]chat.Session, error) {
	var sessions []chat.Session
	if err := c.doRequest(ctx, cred, http.MethodGet, "/chat/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession creates a new session with the given title.
func (c *Client) CreateSession(ctx context.Context, cred auth.Credential, title string) (*chat.Session, error) {
	body := struct {
		Title string `json:"title"`
	}{Title: title}
	var created chat.Session
	if err := c.doRequest(ctx, cred, http.MethodPost, "/chat/sessions", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteSession deletes a session by id.
func (c *Client) DeleteSession(ctx context.Context, cred auth.Credential, id string) error {
	return c.doRequest(ctx, cred, http.MethodDelete, "/chat/sessions/"+id, nil, nil)
}

// ListMessages returns the full history of one session, oldest first.
func (c *Client) ListMessages(ctx context.Context, cred auth.Credential, sessionID string) ([]chat.Message, error) {
	var messages []chat.Message
	path := "/chat/sessions/" + sessionID + "/messages"
	if err := c.doRequest(ctx, cred, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage delivers text to a session and returns the server-confirmed
// user message together with the generated assistant reply.
func (c *Client) SendMessage(ctx context.Context, cred auth.Credential, sessionID, text string) (*chat.Exchange, error) {
	body := struct {
		Content string `json:"content"`
	}{Content: text}
	var exchange chat.Exchange
	path := "/chat/sessions/" + sessionID + "/messages"
	if err := c.doRequest(ctx, cred, http.MethodPost, path, body, &exchange); err != nil {
		return nil, err
	}
	return &exchange, nil
}

func (c *Client) doRequest(ctx context.Context, cred auth.Credential, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", jsonContentType)
	}
	req.Header.Set("Accept", jsonContentType)
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("X-Request-Id", uuid.NewString())

	res, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("request failed", slog.String("path", path), "error", err)
		return fmt.Errorf("%w: %w", chat.ErrTransient, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		slog.Error("failed to read response body", slog.String("path", path), "error", err)
		return fmt.Errorf("%w: read response: %w", chat.ErrTransient, err)
	}

	if err := handleApiError(res, raw); err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			slog.Error("failed to unmarshal response body", slog.String("path", path), "error", err)
			return fmt.Errorf("%w: decode response: %w", chat.ErrTransient, err)
		}
	}
	return nil
}

func handleApiError(res *http.Response, body []byte) error {
	if res.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiErr := ApiErrorResponse{}
	message := res.Status
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		message = apiErr.Message
	}

	if res.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", auth.ErrUnauthenticated, message)
	}
	return fmt.Errorf("%w: api request failed: status code %d, message %s",
		chat.ErrTransient, res.StatusCode, message)
}
