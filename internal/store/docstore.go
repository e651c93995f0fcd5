package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/blindtasting/internal/tasting"
)

const timeLayout = time.RFC3339Nano

// DocStore implements SessionStore on libSQL, keeping each state snapshot
// as a JSONB document.
type DocStore struct {
	db *sql.DB
}

// NewDocStore expects the schema from the migrations package to be applied.
func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func (s *DocStore) Create(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, phase, pin_hash, data, created_at, updated_at)
		 VALUES (?, ?, ?, jsonb(?), ?, ?)`,
		sess.ID, string(sess.State.Phase), sess.PinHash, string(data),
		sess.CreatedAt.UTC().Format(timeLayout), sess.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", sess.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess                 Session
		data                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&sess.ID, &sess.PinHash, &data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(data), &sess.State); err != nil {
		return Session{}, fmt.Errorf("decoding state of %s: %w", sess.ID, err)
	}
	if !sess.State.Phase.Valid() {
		return Session{}, fmt.Errorf("%w: %s has phase %q", ErrCorrupt, sess.ID, sess.State.Phase)
	}
	if sess.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Session{}, fmt.Errorf("parsing created_at of %s: %w", sess.ID, err)
	}
	if sess.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return Session{}, fmt.Errorf("parsing updated_at of %s: %w", sess.ID, err)
	}
	return sess, nil
}

const selectSession = `SELECT id, pin_hash, json(data), created_at, updated_at FROM sessions WHERE id = ?`

func (s *DocStore) Load(ctx context.Context, id string) (Session, error) {
	return scanSession(s.db.QueryRowContext(ctx, selectSession, id))
}

// putState overwrites the snapshot of an existing session inside tx.
func putState(ctx context.Context, tx *sql.Tx, id string, st tasting.State, at time.Time) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET phase = ?, data = jsonb(?), updated_at = ? WHERE id = ?`,
		string(st.Phase), string(data), at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DocStore) Commit(ctx context.Context, sess Session, h HistoryEntry) error {
	before, err := json.Marshal(h.Before)
	if err != nil {
		return fmt.Errorf("encoding history state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := putState(ctx, tx, sess.ID, sess.State, sess.UpdatedAt); err != nil {
		return err
	}

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM session_history WHERE session_id = ?`, sess.ID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("reading history of %s: %w", sess.ID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_history (session_id, seq, command, data, applied_at)
		 VALUES (?, ?, ?, jsonb(?), ?)`,
		sess.ID, seq+1, h.Command, string(before), h.AppliedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("appending history of %s: %w", sess.ID, err)
	}

	return tx.Commit()
}

func (s *DocStore) Undo(ctx context.Context, id string, at time.Time) (Session, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback()

	var (
		seq  int
		data string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, json(data) FROM session_history WHERE session_id = ? ORDER BY seq DESC LIMIT 1`, id,
	).Scan(&seq, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNothingToUndo
	}
	if err != nil {
		return Session{}, fmt.Errorf("reading history of %s: %w", id, err)
	}

	var before tasting.State
	if err := json.Unmarshal([]byte(data), &before); err != nil {
		return Session{}, fmt.Errorf("decoding history state of %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_history WHERE session_id = ? AND seq = ?`, id, seq,
	); err != nil {
		return Session{}, fmt.Errorf("removing history of %s: %w", id, err)
	}
	if err := putState(ctx, tx, id, before, at); err != nil {
		return Session{}, err
	}

	sess, err := scanSession(tx.QueryRowContext(ctx, selectSession, id))
	if err != nil {
		return Session{}, err
	}
	return sess, tx.Commit()
}

func (s *DocStore) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, command, json(data), applied_at FROM session_history
		 WHERE session_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			h         HistoryEntry
			data      string
			appliedAt string
		)
		if err := rows.Scan(&h.Seq, &h.Command, &data, &appliedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &h.Before); err != nil {
			return nil, fmt.Errorf("decoding history state of %s: %w", id, err)
		}
		if h.AppliedAt, err = time.Parse(timeLayout, appliedAt); err != nil {
			return nil, fmt.Errorf("parsing applied_at of %s: %w", id, err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// Delete removes the session and its history. Foreign keys are only
// enforced on the connection that set the pragma, so history is removed
// explicitly.
func (s *DocStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_history WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting history of %s: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *DocStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phase,
		        COALESCE(json_array_length(data, '$.players'), 0),
		        COALESCE(json_array_length(data, '$.bottles'), 0),
		        updated_at
		 FROM sessions ORDER BY updated_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			phase     string
			updatedAt string
		)
		if err := rows.Scan(&sum.ID, &phase, &sum.Players, &sum.Bottles, &updatedAt); err != nil {
			return nil, err
		}
		sum.Phase = tasting.Phase(phase)
		if sum.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at of %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
