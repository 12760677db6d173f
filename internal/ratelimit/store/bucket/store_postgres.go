package bucket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medgate/internal/ratelimit/models"
	"medgate/pkg/platform/tx"
)

// PostgresBucketStore implements ports.CounterStore on a rate_limit_windows
// table. The row lock taken by SELECT ... FOR UPDATE serializes one key; the
// transition itself is models.Advance.
type PostgresBucketStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed counter store.
func NewPostgres(db *sql.DB) *PostgresBucketStore {
	return &PostgresBucketStore{db: db}
}

// Increment applies one consume attempt inside a transaction.
func (s *PostgresBucketStore) Increment(ctx context.Context, key string, now time.Time, policy models.Policy) (*models.Result, error) {
	var result models.Result
	err := tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		if _, err := t.ExecContext(ctx, `
			INSERT INTO rate_limit_windows (key, window_start, consumed, capacity, block_until)
			VALUES ($1, $2, 0, $3, NULL)
			ON CONFLICT (key) DO NOTHING
		`, key, now, policy.Capacity); err != nil {
			return fmt.Errorf("ensure window: %w", err)
		}

		current, err := scanWindow(key, t.QueryRowContext(ctx, `
			SELECT window_start, consumed, capacity, block_until
			FROM rate_limit_windows
			WHERE key = $1
			FOR UPDATE
		`, key))
		if err != nil {
			return fmt.Errorf("lock window: %w", err)
		}

		next, res := models.Advance(current, key, now, policy)
		result = res
		if _, err := t.ExecContext(ctx, `
			UPDATE rate_limit_windows
			SET window_start = $2, consumed = $3, capacity = $4, block_until = $5
			WHERE key = $1
		`, key, next.Start, next.Consumed, next.Capacity, nullTime(next.BlockUntil)); err != nil {
			return fmt.Errorf("update window: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment counter: %w", err)
	}
	return &result, nil
}

// Reset removes the window row for a key.
func (s *PostgresBucketStore) Reset(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE key = $1`, key); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}

// Peek reads the stored window without locking.
func (s *PostgresBucketStore) Peek(ctx context.Context, key string) (*models.Window, error) {
	w, err := scanWindow(key, s.db.QueryRowContext(ctx, `
		SELECT window_start, consumed, capacity, block_until
		FROM rate_limit_windows
		WHERE key = $1
	`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek counter: %w", err)
	}
	return w, nil
}

func scanWindow(key string, row *sql.Row) (*models.Window, error) {
	var (
		w          = models.Window{Key: key}
		blockUntil sql.NullTime
	)
	if err := row.Scan(&w.Start, &w.Consumed, &w.Capacity, &blockUntil); err != nil {
		return nil, err
	}
	if blockUntil.Valid {
		until := blockUntil.Time
		w.BlockUntil = &until
	}
	return &w, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
