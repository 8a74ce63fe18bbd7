// Package notify maintains the long-lived real-time alert channel. The
// channel is scoped to the logged-in user, not to any screen or session:
// it is opened once per login, survives navigation, and is torn down once
// at logout.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmaklakov/finchatui/internal/auth"
	"github.com/rmaklakov/finchatui/internal/chat"
)

const alertChanBufferSize = 100

// Alert is one asynchronous notification pushed by the server.
type Alert struct {
	ID        string    `db:"id" json:"alertId"`
	Message   string    `db:"message" json:"message"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	}
	return "unknown"
}

// joinFrame declares which user's alerts this connection should receive.
type joinFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Channel owns the notification queue and the single websocket connection
// feeding it. Alerts enter through Ingest, which is also usable by a REST
// poller, so push and pull delivery share one ingestion port. No
// deduplication is performed; duplicate delivery is indistinguishable from
// duplicate real alerts.
type Channel struct {
	mu     sync.Mutex
	url    string
	guard  *auth.Guard
	dialer *websocket.Dialer

	state State
	conn  *websocket.Conn
	done  chan struct{}
	queue []Alert
	epoch uint64 // bumped by Disconnect so a concurrent Connect cannot commit

	// AlertChan receives every ingested alert for live display. Delivery
	// is best-effort: a slow consumer drops, the queue never does.
	AlertChan chan Alert
}

func NewChannel(url string, guard *auth.Guard) *Channel {
	return &Channel{
		url:       url,
		guard:     guard,
		dialer:    websocket.DefaultDialer,
		AlertChan: make(chan Alert, alertChanBufferSize),
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notifications returns a copy of the accumulated alert queue, in delivery
// order.
func (c *Channel) Notifications() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Alert, len(c.queue))
	copy(out, c.queue)
	return out
}

// Connect dials the stream, declares the user's identity with a join
// frame, and starts the reader. Reconnection after a transport drop is the
// transport's concern, not scheduled here.
func (c *Channel) Connect(ctx context.Context) error {
	cred, err := c.guard.Require()
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	epoch := c.epoch
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		c.settle(epoch)
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.guard.HandleRejected()
			return fmt.Errorf("dial alert stream: %w", auth.ErrUnauthenticated)
		}
		slog.Error("failed to dial alert stream", "error", err)
		return fmt.Errorf("dial alert stream: %w: %w", chat.ErrTransient, err)
	}

	// A Disconnect issued while the dial was in flight is final: the
	// connection is dropped without declaring an identity on it.
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.mu.Unlock()

	if err := conn.WriteJSON(joinFrame{Type: "join", UserID: cred.UserID}); err != nil {
		conn.Close()
		c.settle(epoch)
		slog.Error("failed to send join frame", "error", err)
		return fmt.Errorf("join alert stream: %w: %w", chat.ErrTransient, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.state = StateJoined
	c.conn = conn
	c.done = done
	c.mu.Unlock()

	slog.Info("alert stream joined", slog.String("user_id", cred.UserID))
	go c.readLoop(conn, done)
	return nil
}

// Disconnect tears the channel down at logout: the connection is closed,
// the reader drained, and the queue discarded. A fresh login starts with
// an empty queue.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	c.done = nil
	c.state = StateDisconnected
	c.queue = nil
	c.epoch++
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
	slog.Info("alert stream disconnected")
}

// Ingest appends an alert to the queue and offers it to AlertChan. This is
// the single entry point for both the websocket reader and any polling
// producer.
func (c *Channel) Ingest(a Alert) {
	c.mu.Lock()
	c.queue = append(c.queue, a)
	c.mu.Unlock()

	select {
	case c.AlertChan <- a:
	default:
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var a Alert
		if err := conn.ReadJSON(&a); err != nil {
			c.markDropped(conn)
			return
		}
		slog.Debug("alert received",
			slog.String("alert_id", a.ID),
			slog.String("message", a.Message),
		)
		c.Ingest(a)
	}
}

// settle returns a failed connect attempt to Disconnected unless a
// teardown already moved the channel on to a newer epoch.
func (c *Channel) settle(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch {
		c.state = StateDisconnected
	}
}

// markDropped records a transport-level disconnect. The queue is kept;
// only an explicit teardown discards it.
func (c *Channel) markDropped(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		// A teardown or newer connection already took over.
		return
	}
	c.conn = nil
	c.done = nil
	c.state = StateDisconnected
	slog.Warn("alert stream connection dropped")
}
