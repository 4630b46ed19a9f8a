package quote

import (
	"context"
	"fmt"

	"github.com/amplifihq/coinswap/internal/aggregator"
	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/amplifihq/coinswap/internal/registry"
	"github.com/amplifihq/coinswap/internal/relay"
	"github.com/sirupsen/logrus"
)

// Source identifies which liquidity backend priced a leg.
type Source string

const (
	SourceAggregator   Source = "aggregator"
	SourceBondingCurve Source = "bonding_curve"
)

// Quote is a normalized price for one pair, direct or composed. The backend
// payloads are carried opaquely so the swap builder can replay the exact
// quote when materializing instructions.
type Quote struct {
	InputMint  string  `json:"inputMint"`
	OutputMint string  `json:"outputMint"`
	In         Amount  `json:"in"`
	Out        Amount  `json:"out"`
	Rate       float64 `json:"rate"`
	// Sum of per-leg impacts for composed quotes.
	PriceImpactPct float64 `json:"priceImpactPct"`
	SlippageBps    uint16  `json:"slippageBps"`
	Source         Source  `json:"source"`

	// Exactly one backend payload is set on a single-leg quote; composed
	// quotes instead carry both legs.
	Aggregator *aggregator.QuoteResponse `json:"-"`
	Relay      *relay.QuoteResponse      `json:"-"`

	FirstLeg  *Quote `json:"firstLeg,omitempty"`
	SecondLeg *Quote `json:"secondLeg,omitempty"`
}

// AggregatorQuoter prices pairs on the general aggregator.
type AggregatorQuoter interface {
	Quote(ctx context.Context, req aggregator.QuoteRequest) (*aggregator.QuoteResponse, error)
}

// PoolQuoter prices single-coin trades on their bonding-curve or migrated
// pool.
type PoolQuoter interface {
	Quote(ctx context.Context, params relay.QuoteParams) (*relay.QuoteResponse, error)
}

// Provider routes quote requests to the right backend per leg and composes
// two-leg quotes for artist-coin pairs.
type Provider struct {
	aggregator AggregatorQuoter
	pool       PoolQuoter
	registry   *registry.Registry
	coins      registry.CoinStateStore
	logger     *logrus.Entry
}

func NewProvider(
	agg AggregatorQuoter,
	pool PoolQuoter,
	reg *registry.Registry,
	coins registry.CoinStateStore,
	logger *logrus.Logger,
) *Provider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Provider{
		aggregator: agg,
		pool:       pool,
		registry:   reg,
		coins:      coins,
		logger:     logger.WithField("component", "quote"),
	}
}

// KnownToken reports whether a mint is tradeable: part of the fixed base
// set, registered, or an artist coin with a cached record.
func (p *Provider) KnownToken(ctx context.Context, mint string) bool {
	if registry.IsBaseMint(mint) {
		return true
	}
	if p.registry != nil {
		if _, ok := p.registry.FindByAddress(mint); ok {
			return true
		}
	}
	if p.coins == nil {
		return false
	}
	record, err := p.coins.CoinState(ctx, mint)
	return err == nil && record != nil
}

// Decimals resolves the precision for a mint. Unregistered mints are artist
// coins, which share a fixed precision.
func (p *Provider) Decimals(mint string) uint8 {
	if p.registry != nil {
		if t, ok := p.registry.FindByAddress(mint); ok {
			return t.Decimals
		}
	}
	return constants.ArtistCoinDecimals
}

// GetQuote prices a pair, routing through the platform token when the pair is
// not directly routable.
func (p *Provider) GetQuote(ctx context.Context, inputMint, outputMint string, amountUI float64, slippageBps uint16) (*Quote, error) {
	if inputMint == outputMint {
		return nil, fmt.Errorf("input and output mints are identical")
	}
	if amountUI <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if slippageBps == 0 {
		slippageBps = constants.DefaultSlippageBps
	}

	if registry.IsDirectlyRoutable(inputMint, outputMint) {
		in := NewAmountFromUI(amountUI, p.Decimals(inputMint))
		return p.legQuote(ctx, inputMint, outputMint, in, slippageBps)
	}
	return p.indirectQuote(ctx, inputMint, outputMint, amountUI, slippageBps)
}

// indirectQuote composes input -> platform token -> output. The second leg is
// priced on the first leg's full quoted output.
func (p *Provider) indirectQuote(ctx context.Context, inputMint, outputMint string, amountUI float64, slippageBps uint16) (*Quote, error) {
	in := NewAmountFromUI(amountUI, p.Decimals(inputMint))

	first, err := p.legQuote(ctx, inputMint, constants.PlatformTokenMint, in, slippageBps)
	if err != nil {
		return nil, fmt.Errorf("failed to quote %s -> platform token: %w", inputMint, err)
	}

	second, err := p.legQuote(ctx, constants.PlatformTokenMint, outputMint, first.Out, slippageBps)
	if err != nil {
		return nil, fmt.Errorf("failed to quote platform token -> %s: %w", outputMint, err)
	}

	q := &Quote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		In:             first.In,
		Out:            second.Out,
		PriceImpactPct: first.PriceImpactPct + second.PriceImpactPct,
		SlippageBps:    slippageBps,
		FirstLeg:       first,
		SecondLeg:      second,
	}
	if q.In.UIAmount > 0 {
		q.Rate = q.Out.UIAmount / q.In.UIAmount
	}
	return q, nil
}

// LegQuote prices a single leg from a raw input amount, picking the backend
// the same way composed quotes do. The executor uses it to re-price a second
// leg when the first leg settled short of its quote.
func (p *Provider) LegQuote(ctx context.Context, inputMint, outputMint string, in Amount, slippageBps uint16) (*Quote, error) {
	return p.legQuote(ctx, inputMint, outputMint, in, slippageBps)
}

// legQuote prices a single leg. A leg touching a coin with a live pool is
// priced by the pool relay; everything else goes to the aggregator.
func (p *Provider) legQuote(ctx context.Context, inputMint, outputMint string, in Amount, slippageBps uint16) (*Quote, error) {
	if coinMint, direction, ok := p.poolLeg(ctx, inputMint, outputMint); ok {
		return p.poolQuote(ctx, inputMint, outputMint, coinMint, direction, in, slippageBps)
	}
	return p.aggregatorQuote(ctx, inputMint, outputMint, in, slippageBps)
}

// poolLeg reports whether a leg should be priced against a coin's own pool,
// and in which direction.
func (p *Provider) poolLeg(ctx context.Context, inputMint, outputMint string) (string, relay.Direction, bool) {
	if p.pool == nil {
		return "", "", false
	}
	if !registry.IsBaseMint(inputMint) {
		if registry.GetPoolState(ctx, inputMint, p.coins).HasPool() {
			return inputMint, relay.DirectionSell, true
		}
	}
	if !registry.IsBaseMint(outputMint) {
		if registry.GetPoolState(ctx, outputMint, p.coins).HasPool() {
			return outputMint, relay.DirectionBuy, true
		}
	}
	return "", "", false
}

// AggregatorLeg prices a single leg on the general aggregator regardless of
// pool state. Used when a pool-relay leg is disabled or falls back.
func (p *Provider) AggregatorLeg(ctx context.Context, inputMint, outputMint string, in Amount, slippageBps uint16) (*Quote, error) {
	return p.aggregatorQuote(ctx, inputMint, outputMint, in, slippageBps)
}

func (p *Provider) aggregatorQuote(ctx context.Context, inputMint, outputMint string, in Amount, slippageBps uint16) (*Quote, error) {
	maxAccounts := uint64(constants.MaxQuoteAccounts)
	resp, err := p.aggregator.Quote(ctx, aggregator.QuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      in.RawString(),
		SlippageBps: &slippageBps,
		SwapMode:    "ExactIn",
		MaxAccounts: &maxAccounts,
	})
	if err != nil {
		return nil, err
	}

	out, err := parseRawAmount(resp.OutAmount, p.Decimals(outputMint))
	if err != nil {
		return nil, fmt.Errorf("aggregator quote: %w", err)
	}

	q := &Quote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		In:             in,
		Out:            out,
		PriceImpactPct: parsePriceImpact(resp.PriceImpactPct),
		SlippageBps:    slippageBps,
		Source:         SourceAggregator,
		Aggregator:     resp,
	}
	if q.In.UIAmount > 0 {
		q.Rate = q.Out.UIAmount / q.In.UIAmount
	}
	return q, nil
}

func (p *Provider) poolQuote(ctx context.Context, inputMint, outputMint, coinMint string, direction relay.Direction, in Amount, slippageBps uint16) (*Quote, error) {
	resp, err := p.pool.Quote(ctx, relay.QuoteParams{
		Mint:        coinMint,
		Amount:      in.RawString(),
		Direction:   direction,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return nil, err
	}

	out, err := parseRawAmount(resp.OutAmount, p.Decimals(outputMint))
	if err != nil {
		return nil, fmt.Errorf("pool quote: %w", err)
	}

	q := &Quote{
		InputMint:      inputMint,
		OutputMint:     outputMint,
		In:             in,
		Out:            out,
		PriceImpactPct: parsePriceImpact(resp.PriceImpactPct),
		SlippageBps:    slippageBps,
		Source:         SourceBondingCurve,
		Relay:          resp,
	}
	if q.In.UIAmount > 0 {
		q.Rate = q.Out.UIAmount / q.In.UIAmount
	}
	return q, nil
}
