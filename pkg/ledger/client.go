package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
)

// RPC is the subset of the Solana RPC client the faucet consumes.
type RPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

type ClientConfig struct {
	Logger   *slog.Logger
	RPC      RPC
	Treasury solana.PrivateKey
	Mint     solana.PublicKey
	Clock    clockwork.Clock
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if len(cfg.Treasury) != 64 {
		return errors.New("treasury key must be a 64-byte ed25519 key")
	}
	if cfg.Mint.IsZero() {
		return errors.New("token mint is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Client wraps the Solana RPC client with the treasury identity and the
// token mint the faucet disperses.
type Client struct {
	log      *slog.Logger
	rpc      RPC
	treasury solana.PrivateKey
	mint     solana.PublicKey
	clock    clockwork.Clock

	mu       sync.Mutex
	decimals *uint8
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		log:      cfg.Logger,
		rpc:      cfg.RPC,
		treasury: cfg.Treasury,
		mint:     cfg.Mint,
		clock:    cfg.Clock,
	}, nil
}

// ParseTreasuryKey decodes a base58-encoded ed25519 signing key.
func ParseTreasuryKey(encoded string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode treasury key: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("treasury key must be 64 bytes, got %d", len(raw))
	}
	return solana.PrivateKey(raw), nil
}

// ParseAddress validates a wallet address string.
func ParseAddress(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid wallet address %q: %w", address, err)
	}
	return pk, nil
}

// MintDecimals resolves the mint's decimal precision, caching the result
// since decimals are immutable for a mint.
func (c *Client) MintDecimals(ctx context.Context) (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decimals != nil {
		return *c.decimals, nil
	}

	res, err := c.rpc.GetAccountInfo(ctx, c.mint)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch mint account: %w", err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("mint account %s not found", c.mint)
	}

	var mint token.Mint
	if err := bin.NewBinDecoder(res.Value.Data.GetBinary()).Decode(&mint); err != nil {
		return 0, fmt.Errorf("failed to decode mint account: %w", err)
	}

	c.decimals = &mint.Decimals
	return mint.Decimals, nil
}

// TreasuryBalance reads the treasury token-account balance in whole tokens.
func (c *Client) TreasuryBalance(ctx context.Context) (float64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(c.treasury.PublicKey(), c.mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive treasury token account: %w", err)
	}

	res, err := c.rpc.GetTokenAccountBalance(ctx, ata, solanarpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch treasury balance: %w", err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("treasury token account %s not found", ata)
	}

	units, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse treasury balance %q: %w", res.Value.Amount, err)
	}

	divisor := 1.0
	for i := uint8(0); i < res.Value.Decimals; i++ {
		divisor *= 10
	}
	return float64(units) / divisor, nil
}
