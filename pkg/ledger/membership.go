package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
)

// MembershipChecker decides bonus eligibility: whether a wallet owns an
// asset whose verified-creator set exactly matches the allow-list. It talks
// to a DAS-enabled RPC endpoint directly, since the digital-asset-standard
// methods are a provider extension outside the core RPC surface.
type MembershipChecker struct {
	log        *slog.Logger
	url        string
	httpClient *http.Client
	allow      map[string]struct{}
}

func NewMembershipChecker(log *slog.Logger, dasURL string, allowList []string) (*MembershipChecker, error) {
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if dasURL == "" {
		return nil, errors.New("DAS endpoint is required")
	}
	if len(allowList) == 0 {
		return nil, errors.New("creator allow-list is required")
	}

	allow := make(map[string]struct{}, len(allowList))
	for _, addr := range allowList {
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return nil, fmt.Errorf("invalid creator address %q: %w", addr, err)
		}
		allow[addr] = struct{}{}
	}

	return &MembershipChecker{
		log:        log,
		url:        dasURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		allow:      allow,
	}, nil
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type assetsByOwnerParams struct {
	OwnerAddress string `json:"ownerAddress"`
	Page         int    `json:"page"`
	Limit        int    `json:"limit"`
}

type assetsByOwnerResult struct {
	Total int        `json:"total"`
	Items []dasAsset `json:"items"`
}

type dasAsset struct {
	ID       string       `json:"id"`
	Creators []dasCreator `json:"creators"`
}

type dasCreator struct {
	Address  string `json:"address"`
	Share    int    `json:"share"`
	Verified bool   `json:"verified"`
}

// OwnsMemberAsset reports whether the wallet owns a qualifying asset.
// Fails closed: any query error yields false rather than propagating.
func (m *MembershipChecker) OwnsMemberAsset(ctx context.Context, owner solana.PublicKey) bool {
	assets, err := m.fetchAssets(ctx, owner)
	if err != nil {
		m.log.Warn("membership check failed, treating as non-member",
			"owner", owner.String(), "error", err)
		return false
	}

	for _, asset := range assets {
		if m.hasExactVerifiedSet(asset.Creators) {
			return true
		}
	}
	return false
}

// hasExactVerifiedSet requires the verified-creator addresses to match the
// allow-list exactly: same cardinality, every element present. Subsets and
// supersets do not qualify.
func (m *MembershipChecker) hasExactVerifiedSet(creators []dasCreator) bool {
	verified := make([]string, 0, len(creators))
	for _, c := range creators {
		if c.Verified {
			verified = append(verified, c.Address)
		}
	}
	if len(verified) != len(m.allow) {
		return false
	}
	for _, addr := range verified {
		if _, ok := m.allow[addr]; !ok {
			return false
		}
	}
	return true
}

func (m *MembershipChecker) fetchAssets(ctx context.Context, owner solana.PublicKey) ([]dasAsset, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAssetsByOwner",
		Params: assetsByOwnerParams{
			OwnerAddress: owner.String(),
			Page:         1,
			Limit:        1000,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("RPC error: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	var result assetsByOwnerResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assets result: %w", err)
	}

	return result.Items, nil
}
