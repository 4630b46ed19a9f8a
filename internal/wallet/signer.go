package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	projectrpc "github.com/amplifihq/coinswap/internal/rpc"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

type WalletConfig struct {
	RPCURL       string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Session key: base58-encoded 64-byte key OR solana-keygen JSON array.
	PrivateKey string
	// Optional fee-payer key in the same formats. When unset the session key
	// pays fees.
	FeePayerKey string

	DefaultCommitment   string // e.g. "confirmed"
	SkipPreflight       bool
	PreflightCommitment string // e.g. "processed"
}

// Wallet holds the session signing key and the fee-payer identity, and talks
// to the ledger over JSON-RPC. Keys are read-only after construction.
type Wallet struct {
	cfg      WalletConfig
	rpc      *projectrpc.Client
	priv     solana.PrivateKey
	pub      solana.PublicKey
	feePriv  *solana.PrivateKey
	feePayer solana.PublicKey
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("wallet: RPCURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	if cfg.DefaultCommitment == "" {
		cfg.DefaultCommitment = "confirmed"
	}
	if cfg.PreflightCommitment == "" {
		cfg.PreflightCommitment = "processed"
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		cfg: cfg,
		rpc: projectrpc.NewClient(projectrpc.ClientConfig{
			BaseURL:      cfg.RPCURL,
			Timeout:      cfg.Timeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}),
		priv:     priv,
		pub:      priv.PublicKey(),
		feePayer: priv.PublicKey(),
	}

	if strings.TrimSpace(cfg.FeePayerKey) != "" {
		feePriv, err := parsePrivateKey(cfg.FeePayerKey)
		if err != nil {
			return nil, fmt.Errorf("wallet: fee payer: %w", err)
		}
		w.feePriv = &feePriv
		w.feePayer = feePriv.PublicKey()
	}

	return w, nil
}

func NewWalletFromEnv() (*Wallet, error) {
	cfg := WalletConfig{
		RPCURL:            os.Getenv("SOLANA_RPC_URL"),
		PrivateKey:        os.Getenv("WALLET_PRIVATE_KEY"),
		FeePayerKey:       os.Getenv("FEE_PAYER_PRIVATE_KEY"),
		DefaultCommitment: os.Getenv("WALLET_COMMITMENT"),
	}
	return NewWallet(cfg)
}

func (w *Wallet) Address() string            { return w.pub.String() }
func (w *Wallet) PublicKey() solana.PublicKey { return w.pub }
func (w *Wallet) FeePayer() solana.PublicKey  { return w.feePayer }
func (w *Wallet) Close() error                { return nil }

// AccountExists checks if an account exists on-chain (getAccountInfo != nil).
func (w *Wallet) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	var resp projectrpc.AccountInfoResponse

	params := []any{
		pubkey.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": w.cfg.DefaultCommitment,
		},
	}

	if err := w.rpc.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return false, fmt.Errorf("getAccountInfo RPC failed: %w", err)
	}
	if resp.Error != nil {
		return false, fmt.Errorf("getAccountInfo error: %s", resp.Error.Message)
	}
	return resp.Result.Value != nil, nil
}

// GetTokenAccountBalance returns the token balance of an SPL account.
// A missing value is an error: every caller needs a real number to proceed.
func (w *Wallet) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment string) (*projectrpc.TokenAmount, error) {
	if commitment == "" {
		commitment = w.cfg.DefaultCommitment
	}

	var resp projectrpc.TokenBalanceResponse
	params := []any{
		account.String(),
		map[string]any{"commitment": commitment},
	}

	if err := w.rpc.Call(ctx, "getTokenAccountBalance", params, &resp); err != nil {
		return nil, fmt.Errorf("getTokenAccountBalance RPC failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getTokenAccountBalance error: %s", resp.Error.Message)
	}
	if resp.Result == nil || resp.Result.Value == nil {
		return nil, fmt.Errorf("no balance value for account %s", account)
	}
	return resp.Result.Value, nil
}

// GetAccountData fetches an account's raw data. Returns nil data (no error)
// when the account does not exist.
func (w *Wallet) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	var resp projectrpc.AccountInfoResponse

	params := []any{
		pubkey.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": w.cfg.DefaultCommitment,
		},
	}

	if err := w.rpc.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("getAccountInfo RPC failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getAccountInfo error: %s", resp.Error.Message)
	}
	if resp.Result.Value == nil || len(resp.Result.Value.Data) < 1 {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("invalid account data: %w", err)
	}
	return raw, nil
}

// GetAddressLookupTable fetches and parses an address lookup table account.
// The table layout is 56 bytes of metadata followed by packed 32-byte keys.
const lookupTableMetaSize = 56

func (w *Wallet) GetAddressLookupTable(ctx context.Context, table solana.PublicKey) ([]solana.PublicKey, error) {
	var resp projectrpc.AccountInfoResponse

	params := []any{
		table.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": w.cfg.DefaultCommitment,
		},
	}

	if err := w.rpc.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("getAccountInfo RPC failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getAccountInfo error: %s", resp.Error.Message)
	}
	if resp.Result.Value == nil {
		return nil, fmt.Errorf("lookup table %s not found", table)
	}
	if len(resp.Result.Value.Data) < 1 {
		return nil, fmt.Errorf("lookup table %s has no data", table)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("invalid lookup table data: %w", err)
	}
	if len(raw) < lookupTableMetaSize {
		return nil, fmt.Errorf("lookup table %s data too short: %d bytes", table, len(raw))
	}

	body := raw[lookupTableMetaSize:]
	addrs := make([]solana.PublicKey, 0, len(body)/32)
	for len(body) >= 32 {
		addrs = append(addrs, solana.PublicKeyFromBytes(body[:32]))
		body = body[32:]
	}
	return addrs, nil
}

func parsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		if len(b) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
		}
		return solana.PrivateKey(ed25519.PrivateKey(b)), nil
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return solana.PrivateKey(ed25519.PrivateKey(raw)), nil
}
