package faucet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
)

type CalculatorConfig struct {
	Logger     *slog.Logger
	Store      Store
	Ledger     Ledger
	Membership Membership
	Clock      clockwork.Clock

	// ScaleConstant tunes payout granularity: amount = balance / scale / demand.
	ScaleConstant float64
}

func (cfg *CalculatorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Membership == nil {
		return errors.New("membership checker is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ScaleConstant <= 0 {
		return fmt.Errorf("scale constant must be positive, got %v", cfg.ScaleConstant)
	}
	return nil
}

// Calculator combines the balance oracle and the demand estimator into a
// per-request amount, applying the membership bonus.
type Calculator struct {
	log        *slog.Logger
	store      Store
	ledger     Ledger
	membership Membership
	clock      clockwork.Clock
	scale      float64
}

func NewCalculator(cfg CalculatorConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{
		log:        cfg.Logger,
		store:      cfg.Store,
		ledger:     cfg.Ledger,
		membership: cfg.Membership,
		clock:      cfg.Clock,
		scale:      cfg.ScaleConstant,
	}, nil
}

// RemainingBalance reads the treasury balance, failing soft to 0: an empty
// or unreadable treasury yields amount 0 rather than a structural denial.
func (c *Calculator) RemainingBalance(ctx context.Context) float64 {
	balance, err := c.ledger.TreasuryBalance(ctx)
	if err != nil {
		c.log.Warn("treasury balance query failed, treating as 0", "error", err)
		return 0
	}
	return balance
}

// RecentRecipientCount counts distinct users hit within the rolling window,
// floored at 1 so the amount formula never divides by zero.
func (c *Calculator) RecentRecipientCount(ctx context.Context) int {
	since := c.clock.Now().Add(-CooldownWindow)
	n, err := c.store.CountRecentRecipients(ctx, since)
	if err != nil {
		c.log.Warn("recipient count query failed, treating as 1", "error", err)
		return 1
	}
	if n < 1 {
		return 1
	}
	return n
}

// AmountFor computes the rounded dispersal amount for a wallet, reporting
// whether the membership bonus applied.
func (c *Calculator) AmountFor(ctx context.Context, wallet solana.PublicKey) (float64, bool) {
	amount := c.RemainingBalance(ctx) / c.scale / float64(c.RecentRecipientCount(ctx))

	bonus := c.membership.OwnsMemberAsset(ctx, wallet)
	if bonus {
		amount *= BonusMultiplier
	}

	return Round3(amount), bonus
}

// PerHitAmount is the strict variant used by the status publisher: a failed
// balance read propagates so the previously published value is kept instead
// of advertising a bogus 0.
func (c *Calculator) PerHitAmount(ctx context.Context) (float64, error) {
	balance, err := c.ledger.TreasuryBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read treasury balance: %w", err)
	}
	return Round3(balance / c.scale / float64(c.RecentRecipientCount(ctx))), nil
}

// Round3 rounds to 3 decimal places, the precision used for both the
// transfer instruction and display.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
