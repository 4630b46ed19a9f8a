package aggregator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/time/rate"
)

// Client talks to the swap aggregator's quote and swap-instructions
// endpoints. Requests are rate limited client-side so bursts of quote
// refreshes do not trip the upstream limiter.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	limiter *rate.Limiter
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.jup.ag/swap/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("aggregator http %d", e.StatusCode)
	}
	return fmt.Sprintf("aggregator http %d: %s", e.StatusCode, b)
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)

	if req.SlippageBps != nil {
		q.Set("slippageBps", fmt.Sprintf("%d", *req.SlippageBps))
	}
	if req.SwapMode != "" {
		q.Set("swapMode", req.SwapMode)
	}
	if req.OnlyDirectRoutes != nil {
		q.Set("onlyDirectRoutes", fmt.Sprintf("%t", *req.OnlyDirectRoutes))
	}
	if req.MaxAccounts != nil {
		q.Set("maxAccounts", fmt.Sprintf("%d", *req.MaxAccounts))
	}
	if req.DynamicSlippage != nil {
		q.Set("dynamicSlippage", fmt.Sprintf("%t", *req.DynamicSlippage))
	}

	var out QuoteResponse
	if err := c.doGet(ctx, "/quote?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SwapInstructions materializes a previously fetched quote into the
// instruction set for one leg. The quote is forwarded untouched.
func (c *Client) SwapInstructions(ctx context.Context, req SwapInstructionsRequest) (*SwapInstructionsResponse, error) {
	if req.QuoteResponse == nil {
		return nil, fmt.Errorf("quoteResponse is required")
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("userPublicKey is required")
	}

	var out SwapInstructionsResponse
	if err := c.doPost(ctx, "/swap-instructions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	return c.do(httpReq, out)
}

func (c *Client) doPost(ctx context.Context, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

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

	return c.do(httpReq, out)
}

func (c *Client) do(httpReq *http.Request, out any) error {
	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode aggregator response: %w", err)
	}
	return nil
}

// ConvertInstruction translates a wire-format instruction into the runtime
// form used to assemble transactions.
func ConvertInstruction(ix Instruction) (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", ix.ProgramID, err)
	}

	accounts := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		key, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", a.Pubkey, err)
		}
		accounts = append(accounts, &solana.AccountMeta{
			PublicKey:  key,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}

	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid instruction data: %w", err)
	}

	return solana.NewInstruction(programID, accounts, data), nil
}

// ConvertInstructions converts a batch, preserving order.
func ConvertInstructions(ixs []Instruction) ([]solana.Instruction, error) {
	out := make([]solana.Instruction, 0, len(ixs))
	for i, ix := range ixs {
		converted, err := ConvertInstruction(ix)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}
