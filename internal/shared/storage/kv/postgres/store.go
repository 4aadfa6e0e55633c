package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"resumind-backend/internal/shared/storage/kv"
)

// Store implements kv.Store on the analysis_records table.
type Store struct {
	DB *sql.DB
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM analysis_records WHERE key = $1`
	var value string
	if err := s.DB.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", kv.ErrNotFound, key)
		}
		return "", fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	const query = `
INSERT INTO analysis_records (key, value, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.DB.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

var _ kv.Store = (*Store)(nil)
