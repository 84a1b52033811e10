package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	faucettesting "github.com/moonman-labs/toke-machine/pkg/testing"
	"github.com/stretchr/testify/require"
)

type mockRPC struct {
	getAccountInfo          func(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error)
	getTokenAccountBalance  func(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error)
	getLatestBlockhash      func(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	sendTransactionWithOpts func(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	getSignatureStatuses    func(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

func (m *mockRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
	if m.getAccountInfo != nil {
		return m.getAccountInfo(ctx, account)
	}
	return nil, errors.New("GetAccountInfo not mocked")
}

func (m *mockRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error) {
	if m.getTokenAccountBalance != nil {
		return m.getTokenAccountBalance(ctx, account, commitment)
	}
	return nil, errors.New("GetTokenAccountBalance not mocked")
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error) {
	if m.getLatestBlockhash != nil {
		return m.getLatestBlockhash(ctx, commitment)
	}
	return &solanarpc.GetLatestBlockhashResult{
		Value: &solanarpc.LatestBlockhashResult{LastValidBlockHeight: 100},
	}, nil
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error) {
	if m.sendTransactionWithOpts != nil {
		return m.sendTransactionWithOpts(ctx, tx, opts)
	}
	return solana.Signature{}, errors.New("SendTransactionWithOpts not mocked")
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*solanarpc.GetSignatureStatusesResult, error) {
	if m.getSignatureStatuses != nil {
		return m.getSignatureStatuses(ctx, searchTransactionHistory, sigs...)
	}
	return nil, errors.New("GetSignatureStatuses not mocked")
}

// newTestClient builds a client with a generated treasury key, a generated
// mint, and the mint decimals pre-resolved.
func newTestClient(t *testing.T, rpc RPC) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Logger:   faucettesting.NewLogger(),
		RPC:      rpc,
		Treasury: solana.NewWallet().PrivateKey,
		Mint:     solana.NewWallet().PublicKey(),
	})
	require.NoError(t, err)

	decimals := uint8(6)
	c.decimals = &decimals
	return c
}

func TestFaucet_Ledger_NewClient(t *testing.T) {
	t.Parallel()

	t.Run("returns error when config validation fails", func(t *testing.T) {
		t.Parallel()

		t.Run("missing logger", func(t *testing.T) {
			t.Parallel()
			c, err := NewClient(ClientConfig{
				RPC:      &mockRPC{},
				Treasury: solana.NewWallet().PrivateKey,
				Mint:     solana.NewWallet().PublicKey(),
			})
			require.Error(t, err)
			require.Nil(t, c)
			require.Contains(t, err.Error(), "logger is required")
		})

		t.Run("bad treasury key length", func(t *testing.T) {
			t.Parallel()
			c, err := NewClient(ClientConfig{
				Logger:   faucettesting.NewLogger(),
				RPC:      &mockRPC{},
				Treasury: solana.PrivateKey(make([]byte, 32)),
				Mint:     solana.NewWallet().PublicKey(),
			})
			require.Error(t, err)
			require.Nil(t, c)
			require.Contains(t, err.Error(), "64-byte")
		})

		t.Run("missing mint", func(t *testing.T) {
			t.Parallel()
			c, err := NewClient(ClientConfig{
				Logger:   faucettesting.NewLogger(),
				RPC:      &mockRPC{},
				Treasury: solana.NewWallet().PrivateKey,
			})
			require.Error(t, err)
			require.Nil(t, c)
			require.Contains(t, err.Error(), "mint is required")
		})
	})

	t.Run("returns client when config is valid", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient(ClientConfig{
			Logger:   faucettesting.NewLogger(),
			RPC:      &mockRPC{},
			Treasury: solana.NewWallet().PrivateKey,
			Mint:     solana.NewWallet().PublicKey(),
		})
		require.NoError(t, err)
		require.NotNil(t, c)
	})
}

func TestFaucet_Ledger_ParseTreasuryKey(t *testing.T) {
	t.Parallel()

	t.Run("parses a valid 64-byte key", func(t *testing.T) {
		t.Parallel()
		wallet := solana.NewWallet()
		key, err := ParseTreasuryKey(wallet.PrivateKey.String())
		require.NoError(t, err)
		require.Equal(t, wallet.PrivateKey, key)
	})

	t.Run("rejects malformed base58", func(t *testing.T) {
		t.Parallel()
		_, err := ParseTreasuryKey("not-a-key!!")
		require.Error(t, err)
	})

	t.Run("rejects keys of the wrong length", func(t *testing.T) {
		t.Parallel()
		_, err := ParseTreasuryKey(base58.Encode(make([]byte, 32)))
		require.Error(t, err)
		require.Contains(t, err.Error(), "64 bytes")
	})
}

func TestFaucet_Ledger_ParseAddress(t *testing.T) {
	t.Parallel()

	t.Run("parses a valid address", func(t *testing.T) {
		t.Parallel()
		want := solana.NewWallet().PublicKey()
		got, err := ParseAddress(want.String())
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("rejects an invalid address", func(t *testing.T) {
		t.Parallel()
		_, err := ParseAddress("abc123")
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid wallet address")
	})
}

func TestFaucet_Ledger_MintDecimals(t *testing.T) {
	t.Parallel()

	t.Run("serves cached decimals without an RPC call", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int64
		rpc := &mockRPC{
			getAccountInfo: func(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
				calls.Add(1)
				return nil, errors.New("should not be called")
			},
		}
		c := newTestClient(t, rpc)

		decimals, err := c.MintDecimals(t.Context())
		require.NoError(t, err)
		require.Equal(t, uint8(6), decimals)
		require.Zero(t, calls.Load())
	})

	t.Run("propagates fetch errors", func(t *testing.T) {
		t.Parallel()

		rpc := &mockRPC{
			getAccountInfo: func(ctx context.Context, account solana.PublicKey) (*solanarpc.GetAccountInfoResult, error) {
				return nil, errors.New("rpc unavailable")
			},
		}
		c := newTestClient(t, rpc)
		c.decimals = nil

		_, err := c.MintDecimals(t.Context())
		require.Error(t, err)
	})
}

func TestFaucet_Ledger_TreasuryBalance(t *testing.T) {
	t.Parallel()

	t.Run("converts raw units to whole tokens", func(t *testing.T) {
		t.Parallel()

		rpc := &mockRPC{
			getTokenAccountBalance: func(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error) {
				return &solanarpc.GetTokenAccountBalanceResult{
					Value: &solanarpc.UiTokenAmount{Amount: "1500000", Decimals: 6},
				}, nil
			},
		}
		c := newTestClient(t, rpc)

		balance, err := c.TreasuryBalance(t.Context())
		require.NoError(t, err)
		require.Equal(t, 1.5, balance)
	})

	t.Run("propagates query errors", func(t *testing.T) {
		t.Parallel()

		rpc := &mockRPC{
			getTokenAccountBalance: func(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error) {
				return nil, errors.New("rpc unavailable")
			},
		}
		c := newTestClient(t, rpc)

		_, err := c.TreasuryBalance(t.Context())
		require.Error(t, err)
	})

	t.Run("errors on a missing token account", func(t *testing.T) {
		t.Parallel()

		rpc := &mockRPC{
			getTokenAccountBalance: func(ctx context.Context, account solana.PublicKey, commitment solanarpc.CommitmentType) (*solanarpc.GetTokenAccountBalanceResult, error) {
				return &solanarpc.GetTokenAccountBalanceResult{}, nil
			},
		}
		c := newTestClient(t, rpc)

		_, err := c.TreasuryBalance(t.Context())
		require.Error(t, err)
		require.Contains(t, err.Error(), "not found")
	})
}
