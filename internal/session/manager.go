// Package session hosts live tasting games. It owns every session's state,
// applies commands one at a time per session, persists each new snapshot,
// and tells subscribers about the change.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/blindtasting/internal/store"
	"github.com/playperu/blindtasting/internal/tasting"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrForbidden     = errors.New("host pin required")
	ErrNothingToUndo = errors.New("nothing to undo")
)

type live struct {
	mu      sync.Mutex
	state   tasting.State
	pinHash string
	deleted bool
}

// authorize checks pin against the session's host PIN. Open sessions
// accept any pin.
func (l *live) authorize(pin string) error {
	if l.pinHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(l.pinHash), []byte(pin)); err != nil {
		return ErrForbidden
	}
	return nil
}

type Manager struct {
	store   store.SessionStore
	broker  *Broker
	logger  *slog.Logger
	machine *tasting.Machine
	pinCost int
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*live
}

type Option func(*Manager)

// WithPinCost sets the bcrypt cost used to hash host PINs.
func WithPinCost(cost int) Option {
	return func(m *Manager) { m.pinCost = cost }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(st store.SessionStore, broker *Broker, logger *slog.Logger, opts tasting.Options, options ...Option) *Manager {
	m := &Manager{
		store:    st,
		broker:   broker,
		logger:   logger,
		machine:  tasting.NewMachine(opts),
		pinCost:  bcrypt.DefaultCost,
		now:      time.Now,
		sessions: make(map[string]*live),
	}
	for _, o := range options {
		o(m)
	}
	return m
}

func (m *Manager) Broker() *Broker { return m.broker }

// Create starts a new session in the setup phase. A non-empty pin is
// required for every later change to the session.
func (m *Manager) Create(ctx context.Context, pin string) (string, tasting.State, error) {
	var pinHash string
	if pin != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(pin), m.pinCost)
		if err != nil {
			return "", tasting.State{}, fmt.Errorf("hashing host pin: %w", err)
		}
		pinHash = string(h)
	}

	now := m.now()
	sess := store.Session{
		ID:        uuid.NewString(),
		PinHash:   pinHash,
		State:     tasting.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return "", tasting.State{}, err
	}

	m.mu.Lock()
	m.sessions[sess.ID] = &live{state: sess.State, pinHash: pinHash}
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", sess.ID, "protected", pinHash != "")
	return sess.ID, sess.State.Clone(), nil
}

// get returns the live session, loading it from the store on first use so a
// restarted process re-enters at the persisted phase.
func (m *Manager) get(ctx context.Context, id string) (*live, error) {
	m.mu.RLock()
	l, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return l, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if l, ok := m.sessions[id]; ok {
		return l, nil
	}

	sess, err := m.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	l = &live{state: sess.State, pinHash: sess.PinHash}
	m.sessions[id] = l
	return l, nil
}

// lock returns the live session locked for exclusive use. The caller must
// unlock it.
func (m *Manager) lock(ctx context.Context, id string) (*live, error) {
	l, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	if l.deleted {
		l.mu.Unlock()
		return nil, ErrNotFound
	}
	return l, nil
}

// Get returns a copy of the session's current state.
func (m *Manager) Get(ctx context.Context, id string) (tasting.State, error) {
	l, err := m.lock(ctx, id)
	if err != nil {
		return tasting.State{}, err
	}
	defer l.mu.Unlock()
	return l.state.Clone(), nil
}

// Dispatch applies cmd to the session and persists the result. Commands for
// one session are applied strictly in the order Dispatch acquires the
// session. When the command is rejected or the snapshot cannot be saved the
// session keeps its previous state.
func (m *Manager) Dispatch(ctx context.Context, id, pin string, cmd tasting.Command) (tasting.State, error) {
	l, err := m.lock(ctx, id)
	if err != nil {
		return tasting.State{}, err
	}
	defer l.mu.Unlock()

	if err := l.authorize(pin); err != nil {
		return tasting.State{}, err
	}

	next, err := m.machine.Apply(l.state, cmd)
	if err != nil {
		m.logger.Info("command rejected",
			"session_id", id,
			"command", cmd.Type(),
			"phase", l.state.Phase,
			"error", err,
		)
		return tasting.State{}, err
	}

	now := m.now()
	err = m.store.Commit(ctx,
		store.Session{ID: id, PinHash: l.pinHash, State: next, UpdatedAt: now},
		store.HistoryEntry{Command: cmd.Type(), Before: l.state, AppliedAt: now},
	)
	if err != nil {
		return tasting.State{}, fmt.Errorf("saving session %s: %w", id, err)
	}
	l.state = next

	m.logger.Debug("command applied",
		"session_id", id,
		"command", cmd.Type(),
		"phase", next.Phase,
		"round", next.CurrentRound,
	)
	m.broker.Publish(newEvent(EventApplied, id, cmd.Type(), next))
	return next.Clone(), nil
}

// Undo restores the state the last applied command started from.
func (m *Manager) Undo(ctx context.Context, id, pin string) (tasting.State, error) {
	l, err := m.lock(ctx, id)
	if err != nil {
		return tasting.State{}, err
	}
	defer l.mu.Unlock()

	if err := l.authorize(pin); err != nil {
		return tasting.State{}, err
	}

	sess, err := m.store.Undo(ctx, id, m.now())
	if errors.Is(err, store.ErrNothingToUndo) {
		return tasting.State{}, ErrNothingToUndo
	}
	if err != nil {
		return tasting.State{}, fmt.Errorf("undoing session %s: %w", id, err)
	}
	l.state = sess.State

	m.logger.Info("command undone", "session_id", id, "phase", sess.State.Phase)
	m.broker.Publish(newEvent(EventUndone, id, "", sess.State))
	return sess.State.Clone(), nil
}

// History lists the commands applied to the session, oldest first.
func (m *Manager) History(ctx context.Context, id string) ([]store.HistoryEntry, error) {
	l, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer l.mu.Unlock()

	entries, err := m.store.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", id, err)
	}
	return entries, nil
}

func (m *Manager) Delete(ctx context.Context, id, pin string) error {
	l, err := m.lock(ctx, id)
	if err != nil {
		return err
	}
	defer l.mu.Unlock()

	if err := l.authorize(pin); err != nil {
		return err
	}

	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	l.deleted = true

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Info("session deleted", "session_id", id)
	m.broker.Publish(Event{Type: EventDeleted, SessionID: id})
	return nil
}

func (m *Manager) List(ctx context.Context) ([]store.Summary, error) {
	return m.store.List(ctx)
}
