package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const counterLabel = "NumberOfHit"

// IncrementCounter bumps the dispersal counter by one and returns the new
// count. The increment happens inside a single upsert so concurrent
// successes never lose or duplicate an increment.
func (s *Store) IncrementCounter(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO faucet_counter (label, number_of_hit, last_hit_date)
		VALUES ($1, 1, $2)
		ON CONFLICT (label) DO UPDATE
		SET number_of_hit = faucet_counter.number_of_hit + 1, last_hit_date = $2
		RETURNING number_of_hit`,
		counterLabel, now.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment dispersal counter: %w", err)
	}
	return count, nil
}

// GetCounter returns the current dispersal count, zero if never incremented.
func (s *Store) GetCounter(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT number_of_hit FROM faucet_counter WHERE label = $1`, counterLabel).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query dispersal counter: %w", err)
	}
	return count, nil
}
