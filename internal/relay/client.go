package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the pool relay service, which prices and builds
// bonding-curve and migrated-pool trades on behalf of user wallets.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("relay http %d", e.StatusCode)
	}
	return fmt.Sprintf("relay http %d: %s", e.StatusCode, b)
}

// Quote prices a trade against a coin's pool without building a transaction.
func (c *Client) Quote(ctx context.Context, params QuoteParams) (*QuoteResponse, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	var out QuoteResponse
	if err := c.post(ctx, "/v1/pool/quote", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwapTransaction builds an unsigned pool swap transaction for the wallet.
func (c *Client) SwapTransaction(ctx context.Context, req SwapTransactionRequest) (*SwapTransactionResponse, error) {
	if err := validateParams(req.QuoteParams); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("userPublicKey is required")
	}

	var out SwapTransactionResponse
	if err := c.post(ctx, "/v1/pool/swap", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Transaction) == "" {
		return nil, fmt.Errorf("relay returned empty transaction")
	}
	return &out, nil
}

// CreateBalanceAccount resolves (and creates if needed) the custodial balance
// account for a wallet and mint.
func (c *Client) CreateBalanceAccount(ctx context.Context, req BalanceAccountRequest) (*BalanceAccountResponse, error) {
	if strings.TrimSpace(req.Mint) == "" {
		return nil, fmt.Errorf("mint is required")
	}
	if strings.TrimSpace(req.EthereumWallet) == "" {
		return nil, fmt.Errorf("ethereumWallet is required")
	}

	var out BalanceAccountResponse
	if err := c.post(ctx, "/v1/balance-account", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func validateParams(p QuoteParams) error {
	if strings.TrimSpace(p.Mint) == "" {
		return fmt.Errorf("mint is required")
	}
	if strings.TrimSpace(p.Amount) == "" {
		return fmt.Errorf("amount is required")
	}
	if p.Direction != DirectionBuy && p.Direction != DirectionSell {
		return fmt.Errorf("invalid direction %q", p.Direction)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("content-type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: raw}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode relay response: %w", err)
	}
	return nil
}
