package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/model"
)

// SetState upserts a user-state key. Last write wins; no history is kept.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO user_state (key, value, updated_at_ns)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at_ns = excluded.updated_at_ns
	`), key, value, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store: set state %q: %w", key, err)
	}
	return nil
}

// GetState reads a user-state key, ErrNotFound when absent.
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT value FROM user_state WHERE key = ?
	`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get state %q: %w", key, err)
	}
	return value, nil
}

// AllState returns every persisted key with its last update time.
func (s *Store) AllState(ctx context.Context) ([]model.UserState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, updated_at_ns FROM user_state ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("store: all state: %w", err)
	}
	defer rows.Close()

	var out []model.UserState
	for rows.Next() {
		var st model.UserState
		var ns int64
		if err := rows.Scan(&st.Key, &st.Value, &ns); err != nil {
			return nil, fmt.Errorf("store: scan state: %w", err)
		}
		st.UpdatedAt = time.Unix(0, ns).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}
