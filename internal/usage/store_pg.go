package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Used(ctx context.Context, userID string, kind Kind, day time.Time) (int, error) {
	var used int
	err := s.DB.QueryRowContext(ctx, `
SELECT used FROM usage_counters WHERE user_id = $1 AND kind = $2 AND day = $3`,
		userID, string(kind), day).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return used, err
}

// Consume relies on the conditional upsert: when the new total would exceed the
// limit the update matches nothing and no row is returned.
func (s *pgStore) Consume(ctx context.Context, userID string, kind Kind, day time.Time, n, limit int) (int, error) {
	var used int
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO usage_counters (user_id, kind, day, used, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id, kind, day) DO UPDATE
SET used = usage_counters.used + EXCLUDED.used, updated_at = now()
WHERE usage_counters.used + EXCLUDED.used <= $5
RETURNING used`, userID, string(kind), day, n, limit).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrLimitReached
	}
	if err != nil {
		return 0, err
	}
	return used, nil
}

func (s *pgStore) Reset(ctx context.Context, userID string, day time.Time) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM usage_counters WHERE user_id = $1 AND day = $2`, userID, day)
	return err
}
