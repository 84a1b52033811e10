package faucet

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/moonman-labs/toke-machine/pkg/ledger"
	"github.com/moonman-labs/toke-machine/pkg/store"
)

type mockStore struct {
	getUser               func(ctx context.Context, userID string) (*store.UserRecord, error)
	claimHit              func(ctx context.Context, userID string, now time.Time, cooldown time.Duration) (store.ClaimStatus, error)
	finishHit             func(ctx context.Context, userID string, state store.ProcessState, amount float64, now time.Time) error
	countRecentRecipients func(ctx context.Context, since time.Time) (int, error)
	incrementCounter      func(ctx context.Context, now time.Time) (int64, error)
}

func (m *mockStore) GetUser(ctx context.Context, userID string) (*store.UserRecord, error) {
	if m.getUser != nil {
		return m.getUser(ctx, userID)
	}
	return nil, nil
}

func (m *mockStore) ClaimHit(ctx context.Context, userID string, now time.Time, cooldown time.Duration) (store.ClaimStatus, error) {
	if m.claimHit != nil {
		return m.claimHit(ctx, userID, now, cooldown)
	}
	return store.ClaimGranted, nil
}

func (m *mockStore) FinishHit(ctx context.Context, userID string, state store.ProcessState, amount float64, now time.Time) error {
	if m.finishHit != nil {
		return m.finishHit(ctx, userID, state, amount, now)
	}
	return nil
}

func (m *mockStore) CountRecentRecipients(ctx context.Context, since time.Time) (int, error) {
	if m.countRecentRecipients != nil {
		return m.countRecentRecipients(ctx, since)
	}
	return 1, nil
}

func (m *mockStore) IncrementCounter(ctx context.Context, now time.Time) (int64, error) {
	if m.incrementCounter != nil {
		return m.incrementCounter(ctx, now)
	}
	return 1, nil
}

type mockLedger struct {
	treasuryBalance func(ctx context.Context) (float64, error)
	transfer        func(ctx context.Context, recipient solana.PublicKey, amount float64) ledger.TransferResult
}

func (m *mockLedger) TreasuryBalance(ctx context.Context) (float64, error) {
	if m.treasuryBalance != nil {
		return m.treasuryBalance(ctx)
	}
	return 0, nil
}

func (m *mockLedger) Transfer(ctx context.Context, recipient solana.PublicKey, amount float64) ledger.TransferResult {
	if m.transfer != nil {
		return m.transfer(ctx, recipient, amount)
	}
	return ledger.TransferResult{Submitted: true, Outcome: ledger.OutcomeConfirmed}
}

type mockMembership struct {
	ownsMemberAsset func(ctx context.Context, owner solana.PublicKey) bool
}

func (m *mockMembership) OwnsMemberAsset(ctx context.Context, owner solana.PublicKey) bool {
	if m.ownsMemberAsset != nil {
		return m.ownsMemberAsset(ctx, owner)
	}
	return false
}
