package faucet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/moonman-labs/toke-machine/pkg/ledger"
	"github.com/moonman-labs/toke-machine/pkg/store"
)

// Request is one inbound user request.
type Request interface {
	isRequest()
	User() string
}

// StartRequest is the button-style trigger: the user asked to take a hit.
type StartRequest struct {
	UserID string
}

// AddressSubmitted is the form-style submission carrying a wallet address.
type AddressSubmitted struct {
	UserID  string
	Address string
}

func (StartRequest) isRequest() {}

func (r StartRequest) User() string { return r.UserID }

func (AddressSubmitted) isRequest() {}

func (r AddressSubmitted) User() string { return r.UserID }

// OutcomeKind classifies how a request resolved.
type OutcomeKind string

const (
	OutcomeAllowed        OutcomeKind = "allowed" // start request may proceed to the address form
	OutcomeDeniedBusy     OutcomeKind = "denied_busy"
	OutcomeDeniedCooldown OutcomeKind = "denied_cooldown"
	OutcomeDeniedAddress  OutcomeKind = "denied_invalid_address"
	OutcomeSent           OutcomeKind = "sent"
	OutcomeFailed         OutcomeKind = "failed"
)

// Outcome is the structured result of one dispatched request. Err carries
// internal detail for logging; callers show requesters only the generic
// acknowledgment for the Kind.
type Outcome struct {
	Kind     OutcomeKind
	Amount   float64
	Bonus    bool
	Sequence int64
	Err      error
}

type OrchestratorConfig struct {
	Logger     *slog.Logger
	Store      Store
	Ledger     Ledger
	Calculator *Calculator
	Clock      clockwork.Clock

	// RequestTimeout bounds a single AddressSubmitted request end to end.
	RequestTimeout time.Duration
}

func (cfg *OrchestratorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Calculator == nil {
		return errors.New("calculator is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return nil
}

// Orchestrator composes eligibility, amount computation, transfer, and
// state bookkeeping per incoming request. Requests for different users run
// concurrently; per-user mutual exclusion rests on the store's atomic
// claim.
type Orchestrator struct {
	log     *slog.Logger
	store   Store
	ledger  Ledger
	calc    *Calculator
	clock   clockwork.Clock
	timeout time.Duration
}

func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		log:     cfg.Logger,
		store:   cfg.Store,
		ledger:  cfg.Ledger,
		calc:    cfg.Calculator,
		clock:   cfg.Clock,
		timeout: cfg.RequestTimeout,
	}, nil
}

// Dispatch routes a request to its handler. Every path ends in an Outcome;
// no error escapes this boundary.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) Outcome {
	var out Outcome
	switch r := req.(type) {
	case StartRequest:
		out = o.handleStart(ctx, r)
	case AddressSubmitted:
		out = o.handleAddress(ctx, r)
	default:
		out = Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("unknown request type %T", req)}
	}

	RequestsTotal.WithLabelValues(string(out.Kind)).Inc()
	if out.Err != nil {
		o.log.Error("request resolved with error", "user", req.User(), "outcome", out.Kind, "error", out.Err)
	} else {
		o.log.Info("request resolved", "user", req.User(), "outcome", out.Kind)
	}
	return out
}

// handleStart is the read-only eligibility precheck run on the button
// click, before the address form is shown. The authoritative gate is the
// atomic claim in handleAddress.
func (o *Orchestrator) handleStart(ctx context.Context, req StartRequest) Outcome {
	u, err := o.store.GetUser(ctx, req.UserID)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("eligibility check: %w", err)}
	}
	if u == nil {
		// Never requested before.
		return Outcome{Kind: OutcomeAllowed}
	}

	switch u.Process {
	case store.ProcessDoing:
		return Outcome{Kind: OutcomeDeniedBusy}
	case store.ProcessNone, store.ProcessSent:
		if u.LastHit != nil && o.clock.Now().Sub(*u.LastHit) < CooldownWindow {
			return Outcome{Kind: OutcomeDeniedCooldown}
		}
	}
	// A failed last attempt may retry immediately.
	return Outcome{Kind: OutcomeAllowed}
}

func (o *Orchestrator) handleAddress(ctx context.Context, req AddressSubmitted) (out Outcome) {
	// Validate before any state mutation: a malformed address must never
	// consume the user's claim.
	wallet, err := ledger.ParseAddress(req.Address)
	if err != nil {
		return Outcome{Kind: OutcomeDeniedAddress, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	now := o.clock.Now()
	claim, err := o.store.ClaimHit(ctx, req.UserID, now, CooldownWindow)
	if err != nil {
		return Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("claim: %w", err)}
	}
	switch claim {
	case store.ClaimDeniedBusy:
		return Outcome{Kind: OutcomeDeniedBusy}
	case store.ClaimDeniedCooldown:
		return Outcome{Kind: OutcomeDeniedCooldown}
	}

	// The claim is held from here on. Whatever happens below, the user
	// record must leave the doing state; otherwise the user is locked out
	// forever.
	released := false
	var amount float64
	defer func() {
		if released {
			return
		}
		if r := recover(); r != nil {
			out = Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("panic during dispersal: %v", r)}
		}
		o.release(ctx, req.UserID, store.ProcessFailed, amount)
	}()

	var bonus bool
	amount, bonus = o.calc.AmountFor(ctx, wallet)

	res := o.ledger.Transfer(ctx, wallet, amount)
	TransfersTotal.WithLabelValues(transferResultLabel(res), string(res.Outcome)).Inc()

	if !res.Succeeded() {
		o.log.Warn("transfer failed",
			"user", req.UserID,
			"wallet", wallet.String(),
			"amount", amount,
			"submit_attempts", res.SubmitAttempts,
			"error", res.Err)
		o.release(ctx, req.UserID, store.ProcessFailed, amount)
		released = true
		return Outcome{Kind: OutcomeFailed, Amount: amount, Bonus: bonus, Err: res.Err}
	}

	TransferAmount.Observe(amount)
	o.log.Info("transfer succeeded",
		"user", req.UserID,
		"wallet", wallet.String(),
		"amount", amount,
		"bonus", bonus,
		"signature", res.Signature.String(),
		"confirmation", string(res.Outcome))

	seq, err := o.store.IncrementCounter(ctx, o.clock.Now())
	if err != nil {
		// Value already moved; the sequence number is display-only, so the
		// success stands and the missed increment is surfaced in logs.
		o.log.Error("failed to increment dispersal counter", "user", req.UserID, "error", err)
	}

	o.release(ctx, req.UserID, store.ProcessSent, amount)
	released = true
	return Outcome{Kind: OutcomeSent, Amount: amount, Bonus: bonus, Sequence: seq}
}

// release records the terminal state for a held claim. It runs on a
// detached context so a request past its deadline can still unlock the
// user record.
func (o *Orchestrator) release(ctx context.Context, userID string, state store.ProcessState, amount float64) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := o.store.FinishHit(relCtx, userID, state, amount, o.clock.Now()); err != nil {
		o.log.Error("failed to release user state", "user", userID, "state", state, "error", err)
	}
}

func transferResultLabel(res ledger.TransferResult) string {
	if res.Succeeded() {
		return "success"
	}
	return "failure"
}
