package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/mr-tron/base58"
)

// TokenDescriptor is per-asset metadata loaded once per session. CustodialID
// identifies the custodial-balance representation of the asset: the mint
// itself for most tokens, a reserved symbol for USDC.
type TokenDescriptor struct {
	Symbol      string `json:"symbol"`
	Mint        string `json:"mint"`
	Decimals    uint8  `json:"decimals"`
	CustodialID string `json:"custodial_id,omitempty"`
}

// Registry holds the tradeable token set, keyed by mint address.
type Registry struct {
	tokens map[string]TokenDescriptor
}

// DefaultTokens is the base token set present in every registry.
var DefaultTokens = []TokenDescriptor{
	{Symbol: "PLATFORM", Mint: constants.PlatformTokenMint, Decimals: constants.PlatformTokenDecimals},
	{Symbol: "SOL", Mint: constants.WSOLMint, Decimals: 9},
	{Symbol: "USDC", Mint: constants.USDCMint, Decimals: 6, CustodialID: "USDC"},
	{Symbol: "USDT", Mint: constants.USDTMint, Decimals: 6},
}

// New builds a registry from the default base set plus any extra tokens
// (typically artist coins fetched from the coin service).
func New(extra ...TokenDescriptor) (*Registry, error) {
	r := &Registry{tokens: make(map[string]TokenDescriptor)}
	for _, t := range DefaultTokens {
		r.tokens[t.Mint] = t
	}
	for _, t := range extra {
		if err := validateToken(t); err != nil {
			return nil, err
		}
		r.tokens[t.Mint] = t
	}
	return r, nil
}

// Load reads extra tokens from a JSON file and merges them over the defaults.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token config: %w", err)
	}

	var tokens []TokenDescriptor
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token config: %w", err)
	}

	return New(tokens...)
}

func validateToken(t TokenDescriptor) error {
	if strings.TrimSpace(t.Mint) == "" {
		return fmt.Errorf("token %q: mint is required", t.Symbol)
	}
	raw, err := base58.Decode(t.Mint)
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("token %q: invalid mint address %q", t.Symbol, t.Mint)
	}
	if t.Decimals == 0 {
		return fmt.Errorf("token %q: decimals is required", t.Symbol)
	}
	return nil
}

// FindByAddress returns the descriptor for a mint, matching
// case-insensitively like the upstream registry service does.
func (r *Registry) FindByAddress(mint string) (TokenDescriptor, bool) {
	if t, ok := r.tokens[mint]; ok {
		return t, true
	}
	for _, t := range r.tokens {
		if strings.EqualFold(t.Mint, mint) {
			return t, true
		}
	}
	return TokenDescriptor{}, false
}

// CustodialID returns the custodial-balance identifier for a descriptor.
func (t TokenDescriptor) CustodialIdentifier() string {
	if t.CustodialID != "" {
		return t.CustodialID
	}
	return t.Mint
}

// Tokens returns every registered descriptor.
func (r *Registry) Tokens() []TokenDescriptor {
	out := make([]TokenDescriptor, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	return out
}
