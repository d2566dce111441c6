// ABOUTME: Store interface and data types for parlor persistence
// ABOUTME: Defines User, Connection, Exchange structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when trying to create a user that already exists
var ErrDuplicateUser = errors.New("user already exists")

// User is a registered account.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Connection records a single client attach for audit purposes.
type Connection struct {
	ID          int64
	Identity    string
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time
}

// Exchange origin constants
const (
	OriginCache     = "cache"
	OriginGenerated = "generated"
	OriginFallback  = "fallback"
	OriginCanned    = "canned"
)

// Exchange is one completed question/answer pair handled by the agent.
type Exchange struct {
	ID          int64
	Participant string
	Query       string
	Response    string
	Origin      string
	CreatedAt   time.Time
}

// Store is the persistence interface for the hub.
type Store interface {
	// CreateUser inserts a new account. Returns ErrDuplicateUser if the
	// username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) error

	// GetUser fetches an account by username. Returns ErrNotFound if missing.
	GetUser(ctx context.Context, username string) (*User, error)

	// RecordConnection appends a connection audit row.
	RecordConnection(ctx context.Context, identity, remoteAddr, userAgent string) error

	// RecordExchange appends a completed agent exchange.
	RecordExchange(ctx context.Context, ex Exchange) error

	// RecentExchanges returns the most recent exchanges, newest first.
	RecentExchanges(ctx context.Context, limit int) ([]Exchange, error)

	// Close releases the underlying database handle.
	Close() error
}
