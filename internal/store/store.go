// Package store persists tasting sessions so they survive restarts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/playperu/blindtasting/internal/tasting"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNothingToUndo = errors.New("no history to undo")
	ErrCorrupt       = errors.New("corrupt session snapshot")
)

// Session is the persisted form of one game: its latest state snapshot and
// the bcrypt hash of the host PIN, empty when the session is open.
type Session struct {
	ID        string
	PinHash   string
	State     tasting.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string        `json:"id"`
	Phase     tasting.Phase `json:"phase"`
	Players   int           `json:"players"`
	Bottles   int           `json:"bottles"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// HistoryEntry records a command that was applied and the state it was
// applied to.
type HistoryEntry struct {
	Seq       int           `json:"seq"`
	Command   string        `json:"command"`
	Before    tasting.State `json:"-"`
	AppliedAt time.Time     `json:"appliedAt"`
}

type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Load(ctx context.Context, id string) (Session, error)
	// Commit saves the new snapshot and appends h to the session history
	// atomically.
	Commit(ctx context.Context, s Session, h HistoryEntry) error
	// Undo removes the latest history entry and restores its Before state.
	Undo(ctx context.Context, id string, at time.Time) (Session, error)
	History(ctx context.Context, id string) ([]HistoryEntry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Summary, error)
}
