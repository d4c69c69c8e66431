// Package store is the durable tier of the session store: one row per user
// carrying the JSON-encoded session record, behind a pluggable SQL driver.
package store

import (
	"context"
	"database/sql"
)

// UserSession is the durable representation of one user's session.
type UserSession struct {
	UserID    string
	Payload   string // JSON-encoded session record
	UpdatedTs int64
}

// Driver is the contract a database driver implements.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema if it does not exist yet.
	Migrate(ctx context.Context) error

	// GetUserSession returns nil without error when no row exists.
	GetUserSession(ctx context.Context, userID string) (*UserSession, error)
	UpsertUserSession(ctx context.Context, upsert *UserSession) error
	DeleteUserSession(ctx context.Context, userID string) error
}
