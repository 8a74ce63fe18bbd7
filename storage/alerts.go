package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rmaklakov/finchatui/internal/notify"
)

// Alerts is a local archive of received alert notifications
type Alerts struct {
	db *sqlx.DB
}

// NewAlerts creates a new Alerts archive
func NewAlerts(db *sqlx.DB) (*Alerts, error) {
	createAlertsTable := `
	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	)
	`
	if _, err := db.Exec(createAlertsTable); err != nil {
		return nil, fmt.Errorf("failed to create alerts table: %w", err)
	}

	return &Alerts{db: db}, nil
}

// Read returns all archived alerts in arrival order. Duplicate alert ids
// are kept as received; the archive does not deduplicate.
func (a *Alerts) Read() ([]notify.Alert, error) {
	var alerts []notify.Alert
	err := a.db.Select(&alerts, "SELECT id, message, timestamp FROM alerts ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}

	slog.Debug("read alerts",
		slog.Int("count", len(alerts)),
	)
	return alerts, nil
}

// Write appends an alert to the archive
func (a *Alerts) Write(alert notify.Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	insertQuery := "INSERT INTO alerts (id, message, timestamp) VALUES (?, ?, ?)"
	if _, err := a.db.Exec(insertQuery, alert.ID, alert.Message, alert.Timestamp); err != nil {
		return fmt.Errorf("failed to insert alert %+v: %w", alert, err)
	}

	slog.Debug("alert archived",
		slog.String("id", alert.ID),
		slog.String("message", alert.Message),
		slog.Time("timestamp", alert.Timestamp),
	)
	return nil
}
