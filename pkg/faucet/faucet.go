// Package faucet implements the dispersal core: per-user eligibility,
// dynamic amount computation, request orchestration, and the periodic
// status publisher. Chat-platform plumbing and the ledger live behind the
// interfaces declared here.
package faucet

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/moonman-labs/toke-machine/pkg/ledger"
	"github.com/moonman-labs/toke-machine/pkg/store"
)

const (
	// CooldownWindow is the minimum time between two successful dispersals
	// to the same user, and the rolling window for demand estimation.
	CooldownWindow = 24 * time.Hour

	// BonusMultiplier is applied when the wallet owns a member asset.
	BonusMultiplier = 1.1

	// DefaultRequestTimeout bounds the wall-clock time of one dispersal
	// request end to end.
	DefaultRequestTimeout = 2 * time.Minute
)

// Store is the persistent-store surface the core consumes.
type Store interface {
	GetUser(ctx context.Context, userID string) (*store.UserRecord, error)
	ClaimHit(ctx context.Context, userID string, now time.Time, cooldown time.Duration) (store.ClaimStatus, error)
	FinishHit(ctx context.Context, userID string, state store.ProcessState, amount float64, now time.Time) error
	CountRecentRecipients(ctx context.Context, since time.Time) (int, error)
	IncrementCounter(ctx context.Context, now time.Time) (int64, error)
}

// Ledger is the on-chain surface the core consumes.
type Ledger interface {
	TreasuryBalance(ctx context.Context) (float64, error)
	Transfer(ctx context.Context, recipient solana.PublicKey, amount float64) ledger.TransferResult
}

// Membership reports bonus eligibility for a wallet.
type Membership interface {
	OwnsMemberAsset(ctx context.Context, owner solana.PublicKey) bool
}
