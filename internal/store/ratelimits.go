package store

import (
	"context"
	"database/sql"
	"time"
)

// Count returns the usage recorded for a rate-limit window key.
func (s *Store) Count(ctx context.Context, key string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT used FROM rate_limits WHERE window_key = ?`, key).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

func (s *Store) SetCount(ctx context.Context, key string, n int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_limits (window_key, used, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(window_key) DO UPDATE SET
			used = excluded.used,
			updated_at = excluded.updated_at
	`, key, n, time.Now().UTC())
	return err
}

// PruneBefore deletes window keys that sort before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE window_key < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
