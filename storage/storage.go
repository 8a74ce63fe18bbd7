// Package storage keeps a local archive of server-confirmed chat history
// and received alerts, so transcripts survive process restarts. Only
// confirmed state is written; pending optimistic messages never reach it.
package storage

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// NewSqliteDB creates a new sqlite database
func NewSqliteDB(file string) (*sqlx.DB, error) {
	return sqlx.Connect("sqlite", file)
}
