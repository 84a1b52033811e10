package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

const (
	// Fixed attempt bounds for submission and confirmation.
	maxSubmitAttempts  = 6
	maxConfirmAttempts = 6

	confirmPollInterval = 2 * time.Second

	computeUnitLimit = 100_000
	computeUnitPrice = 120_000 // micro-lamports
)

// ConfirmationOutcome classifies how the confirmation phase ended.
type ConfirmationOutcome string

const (
	OutcomeConfirmed          ConfirmationOutcome = "confirmed"
	OutcomeConfirmedWithError ConfirmationOutcome = "confirmed-with-error"
	OutcomeNotConfirmed       ConfirmationOutcome = "not-yet-confirmed"
	OutcomePollFailed         ConfirmationOutcome = "poll-failed"
	OutcomeNotSubmitted       ConfirmationOutcome = "not-submitted"
)

// TransferResult carries the signature and failure detail of a dispersal.
type TransferResult struct {
	Signature       solana.Signature
	Submitted       bool
	Outcome         ConfirmationOutcome
	SubmitAttempts  int
	ConfirmAttempts int
	Err             error
}

// Succeeded reports whether value moved: a submission was accepted by the
// cluster. Confirmation detail is carried in Outcome for observability.
func (r TransferResult) Succeeded() bool {
	return r.Submitted
}

// Transfer builds, submits, and confirms a checked token transfer of the
// given whole-token amount to the recipient wallet.
//
// The transaction is built and signed exactly once. Every submission
// attempt resends the same signed transaction with the same blockhash:
// duplicate submission of an already-settled signature is a ledger-level
// no-op, whereas a rebuilt transaction would be a new, independently
// payable instruction.
func (c *Client) Transfer(ctx context.Context, recipient solana.PublicKey, amount float64) TransferResult {
	tx, err := c.buildTransferTx(ctx, recipient, amount)
	if err != nil {
		return TransferResult{Outcome: OutcomeNotSubmitted, Err: err}
	}

	res := c.submit(ctx, tx)
	if !res.Submitted {
		return res
	}

	c.confirm(ctx, &res)
	return res
}

func (c *Client) buildTransferTx(ctx context.Context, recipient solana.PublicKey, amount float64) (*solana.Transaction, error) {
	decimals, err := c.MintDecimals(ctx)
	if err != nil {
		return nil, err
	}

	treasuryPub := c.treasury.PublicKey()
	srcATA, _, err := solana.FindAssociatedTokenAddress(treasuryPub, c.mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive source token account: %w", err)
	}
	dstATA, _, err := solana.FindAssociatedTokenAddress(recipient, c.mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive recipient token account: %w", err)
	}

	units := uint64(math.Round(amount * math.Pow10(int(decimals))))

	blockhash, err := c.rpc.GetLatestBlockhash(ctx, solanarpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			computebudget.NewSetComputeUnitLimitInstruction(computeUnitLimit).Build(),
			computebudget.NewSetComputeUnitPriceInstruction(computeUnitPrice).Build(),
			newCreateATAIdempotentInstruction(treasuryPub, recipient, dstATA, c.mint),
			token.NewTransferCheckedInstruction(
				units, decimals, srcATA, c.mint, dstATA, treasuryPub, nil,
			).Build(),
		},
		blockhash.Value.Blockhash,
		solana.TransactionPayer(treasuryPub),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(treasuryPub) {
			return &c.treasury
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return tx, nil
}

func (c *Client) submit(ctx context.Context, tx *solana.Transaction) TransferResult {
	res := TransferResult{Outcome: OutcomeNotSubmitted}

	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		res.SubmitAttempts = attempt

		sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
			SkipPreflight: true,
		})
		if err == nil {
			res.Signature = sig
			res.Submitted = true
			res.Outcome = OutcomeNotConfirmed
			c.log.Debug("transaction submitted", "signature", sig.String(), "attempt", attempt)
			return res
		}

		res.Err = err
		c.log.Warn("transaction submission failed", "attempt", attempt, "error", err)

		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
	}

	res.Err = fmt.Errorf("all %d submission attempts failed: %w", maxSubmitAttempts, res.Err)
	return res
}

// confirm polls signature status up to the attempt bound. A status carrying
// an on-chain error is terminal and stops polling early; everything else is
// treated as transient.
func (c *Client) confirm(ctx context.Context, res *TransferResult) {
	for attempt := 1; attempt <= maxConfirmAttempts; attempt++ {
		res.ConfirmAttempts = attempt

		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, res.Signature)
		switch {
		case err != nil:
			res.Outcome = OutcomePollFailed
			res.Err = err
			c.log.Warn("confirmation poll failed", "attempt", attempt, "error", err)

		case len(statuses.Value) == 0 || statuses.Value[0] == nil:
			res.Outcome = OutcomeNotConfirmed

		case statuses.Value[0].Err != nil:
			res.Outcome = OutcomeConfirmedWithError
			res.Err = fmt.Errorf("transaction failed on chain: %v", statuses.Value[0].Err)
			c.log.Warn("transaction confirmed with error",
				"signature", res.Signature.String(), "error", statuses.Value[0].Err)
			return

		case statuses.Value[0].ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed ||
			statuses.Value[0].ConfirmationStatus == solanarpc.ConfirmationStatusFinalized:
			res.Outcome = OutcomeConfirmed
			res.Err = nil
			c.log.Info("transaction confirmed",
				"signature", res.Signature.String(), "status", statuses.Value[0].ConfirmationStatus)
			return

		default:
			res.Outcome = OutcomeNotConfirmed
		}

		if attempt < maxConfirmAttempts {
			select {
			case <-ctx.Done():
				res.Outcome = OutcomePollFailed
				res.Err = ctx.Err()
				return
			case <-c.clock.After(confirmPollInterval):
			}
		}
	}
}

// newCreateATAIdempotentInstruction builds the associated-token-account
// CreateIdempotent instruction: creates the recipient's token account if
// absent, no-op if it already exists.
func newCreateATAIdempotentInstruction(payer, owner, ata, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(ata, true, false),
			solana.NewAccountMeta(owner, false, false),
			solana.NewAccountMeta(mint, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		},
		[]byte{1}, // CreateIdempotent discriminator
	)
}
