package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
}

// SessionStore manages monitoring session history.
type SessionStore interface {
	// StartSession records a new open session.
	StartSession(ctx context.Context, session Session) error
	// AppendTransition records a state change and adds its duration to the
	// running total of the state being left.
	AppendTransition(ctx context.Context, tr TransitionRecord) error
	// FinishSession stores the final totals and closes the session.
	FinishSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	// ListSessions returns the most recently started sessions first.
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	ListTransitions(ctx context.Context, sessionID string) ([]TransitionRecord, error)
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
