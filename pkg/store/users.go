package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// claimSQL grants the in-flight claim in a single conditional statement:
// "set doing unless already doing, and only if outside the cooldown window
// or recovering from a failure". Running near-simultaneous requests for the
// same user through this statement lets Postgres serialize them, so at most
// one claim is granted.
const claimSQL = `
INSERT INTO faucet_users (id, last_hit, process)
VALUES ($1, $2, 'doing')
ON CONFLICT (id) DO UPDATE
SET last_hit = EXCLUDED.last_hit, process = 'doing'
WHERE faucet_users.process <> 'doing'
  AND (faucet_users.process = 'failed'
       OR faucet_users.last_hit IS NULL
       OR faucet_users.last_hit <= $3)
`

// GetUser returns the user record, or nil if the user has never requested.
func (s *Store) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, last_hit, last_amount, process FROM faucet_users WHERE id = $1`, userID)

	var u UserRecord
	if err := row.Scan(&u.ID, &u.LastHit, &u.LastAmount, &u.Process); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	return &u, nil
}

// ClaimHit atomically transitions the user to doing, creating the record on
// first request. When the claim is denied the returned status distinguishes
// busy from cooldown; that classification is a best-effort follow-up read
// and only affects the denial message, never the claim itself.
func (s *Store) ClaimHit(ctx context.Context, userID string, now time.Time, cooldown time.Duration) (ClaimStatus, error) {
	tag, err := s.pool.Exec(ctx, claimSQL, userID, now.UTC(), now.UTC().Add(-cooldown))
	if err != nil {
		return ClaimDeniedBusy, fmt.Errorf("failed to claim hit for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 1 {
		return ClaimGranted, nil
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return ClaimDeniedBusy, err
	}
	if u != nil && u.Process == ProcessDoing {
		return ClaimDeniedBusy, nil
	}
	return ClaimDeniedCooldown, nil
}

// FinishHit records the terminal state of a claimed request. Refreshing
// last_hit here mirrors the dispersal timestamp the cooldown is measured
// from.
func (s *Store) FinishHit(ctx context.Context, userID string, state ProcessState, amount float64, now time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE faucet_users SET process = $2, last_amount = $3, last_hit = $4 WHERE id = $1`,
		userID, state, amount, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to finish hit for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to finish hit for user %s: no such user", userID)
	}
	return nil
}

// CountRecentRecipients counts users whose last hit falls within the window.
func (s *Store) CountRecentRecipients(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM faucet_users WHERE last_hit >= $1`, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent recipients: %w", err)
	}
	return n, nil
}
