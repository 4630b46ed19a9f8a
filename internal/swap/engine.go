package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/amplifihq/coinswap/internal/aggregator"
	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/amplifihq/coinswap/internal/custodial"
	"github.com/amplifihq/coinswap/internal/models"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/registry"
	projectrpc "github.com/amplifihq/coinswap/internal/rpc"
	"github.com/amplifihq/coinswap/internal/relay"
	"github.com/amplifihq/coinswap/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Ledger is the on-chain surface the engine needs: key identity, account
// reads, and the transaction lifecycle. Satisfied by wallet.Wallet.
type Ledger interface {
	PublicKey() solana.PublicKey
	FeePayer() solana.PublicKey
	AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment string) (*projectrpc.TokenAmount, error)
	GetAddressLookupTable(ctx context.Context, table solana.PublicKey) ([]solana.PublicKey, error)
	BuildTransaction(ctx context.Context, instructions []solana.Instruction, lookupTables []solana.PublicKey) (*solana.Transaction, error)
	SignTx(tx *solana.Transaction) error
	SendTx(ctx context.Context, tx *solana.Transaction, opts *wallet.SendOptions) (string, error)
	ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error
}

// Quoter prices pairs and individual legs. Satisfied by quote.Provider.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amountUI float64, slippageBps uint16) (*quote.Quote, error)
	LegQuote(ctx context.Context, inputMint, outputMint string, in quote.Amount, slippageBps uint16) (*quote.Quote, error)
	AggregatorLeg(ctx context.Context, inputMint, outputMint string, in quote.Amount, slippageBps uint16) (*quote.Quote, error)
	KnownToken(ctx context.Context, mint string) bool
	Decimals(mint string) uint8
}

// InstructionsAPI materializes aggregator quotes into instructions.
type InstructionsAPI interface {
	SwapInstructions(ctx context.Context, req aggregator.SwapInstructionsRequest) (*aggregator.SwapInstructionsResponse, error)
}

// RelayAPI builds pool swap transactions for splicing.
type RelayAPI interface {
	SwapTransaction(ctx context.Context, req relay.SwapTransactionRequest) (*relay.SwapTransactionResponse, error)
}

// Custodian resolves custodial balance accounts and builds the authorized
// transfer instructions that move value out of them.
type Custodian interface {
	GetOrCreateBalanceAccount(ctx context.Context, ethWallet string, mint solana.PublicKey) (solana.PublicKey, error)
	TransferInstructions(ctx context.Context, params custodial.TransferParams) ([]solana.Instruction, error)
}

// StateCache is the optimistic swap-state cache. Satisfied by cache.SwapCache.
type StateCache interface {
	InvalidateSwapState(ctx context.Context, owner string, mints ...string) error
	AdjustBalance(ctx context.Context, owner, mint string, delta float64) error
}

// Feed receives execution records for the live recent-swap feed.
type Feed interface {
	AddRecentSwap(ctx context.Context, record *models.SwapExecutionRecord) error
}

// Telemetry persists execution records for offline analysis.
type Telemetry interface {
	InsertExecution(ctx context.Context, record *models.SwapExecutionRecord) error
}

// FlagSource exposes the operational kill switches.
type FlagSource interface {
	RelayFirst(ctx context.Context) bool
	AggregatorFallback(ctx context.Context) bool
}

// Config wires an Engine. Wallet, Quoter and Instructions are required; the
// rest degrade gracefully when nil.
type Config struct {
	Wallet       Ledger
	Quoter       Quoter
	Instructions InstructionsAPI
	Relay        RelayAPI
	Custodian    Custodian
	State        StateCache
	Feed         Feed
	Telemetry    Telemetry
	Flags        FlagSource

	Retry          RetryPolicy
	ConfirmTimeout time.Duration
	Logger         *logrus.Logger
}

// Engine executes swaps end to end.
type Engine struct {
	wallet       Ledger
	quoter       Quoter
	instructions InstructionsAPI
	relay        RelayAPI
	custodian    Custodian
	state        StateCache
	feed         Feed
	telemetry    Telemetry
	flags        FlagSource

	retry          RetryPolicy
	confirmTimeout time.Duration
	lookupTable    solana.PublicKey
	logger         *logrus.Entry
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("engine: wallet is required")
	}
	if cfg.Quoter == nil {
		return nil, fmt.Errorf("engine: quoter is required")
	}
	if cfg.Instructions == nil {
		return nil, fmt.Errorf("engine: instructions API is required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = constants.ConfirmTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Engine{
		wallet:         cfg.Wallet,
		quoter:         cfg.Quoter,
		instructions:   cfg.Instructions,
		relay:          cfg.Relay,
		custodian:      cfg.Custodian,
		state:          cfg.State,
		feed:           cfg.Feed,
		telemetry:      cfg.Telemetry,
		flags:          cfg.Flags,
		retry:          cfg.Retry,
		confirmTimeout: cfg.ConfirmTimeout,
		lookupTable:    solana.MustPublicKeyFromBase58(constants.SwapLookupTableAddress),
		logger:         cfg.Logger.WithField("component", "swap"),
	}, nil
}

// ExecuteSwap runs one swap to completion, including retries for attempts
// that never touched the chain, cache reconciliation and telemetry.
func (e *Engine) ExecuteSwap(ctx context.Context, req SwapRequest) (*SwapExecutionResult, error) {
	start := time.Now()

	if err := e.validateRequest(req); err != nil {
		result := e.errorResult(req, e.routeFor(req), err)
		result.Duration = time.Since(start)
		return result, err
	}
	if err := e.validateTokens(ctx, req); err != nil {
		result := e.errorResult(req, e.routeFor(req), err)
		result.Duration = time.Since(start)
		return result, err
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = constants.DefaultSlippageBps
	}

	route := e.routeFor(req)
	log := e.logger.WithFields(logrus.Fields{
		"inputMint":  req.InputMint,
		"outputMint": req.OutputMint,
		"route":      route,
	})
	log.Info("executing swap")

	policy := e.retry
	policy.Logger = log
	policy.BeforeRetry = func(ctx context.Context, _ int) {
		e.invalidate(ctx, req)
	}

	result, attempts, err := policy.Execute(ctx, func(ctx context.Context) (*SwapExecutionResult, error) {
		if route == RouteDirect {
			return e.executeDirect(ctx, req)
		}
		return e.executeIndirect(ctx, req)
	})
	if result == nil {
		result = e.errorResult(req, route, err)
	}
	result.Duration = time.Since(start)

	e.finalize(ctx, req, result)

	if err != nil {
		log.WithError(err).WithField("attempts", attempts).Error("swap failed")
		return result, err
	}

	log.WithFields(logrus.Fields{
		"signature": result.Signature,
		"attempts":  attempts,
		"duration":  result.Duration,
	}).Info("swap confirmed")
	return result, nil
}

func (e *Engine) validateRequest(req SwapRequest) error {
	if req.InputMint == "" || req.OutputMint == "" {
		return newSwapError(StageQuote, KindQuoteFailed, fmt.Errorf("input and output mints are required"))
	}
	if req.InputMint == req.OutputMint {
		return newSwapError(StageQuote, KindQuoteFailed, fmt.Errorf("input and output mints are identical"))
	}
	if req.AmountUI <= 0 {
		return newSwapError(StageQuote, KindQuoteFailed, fmt.Errorf("amount must be positive"))
	}
	if (req.CustodialSource || req.CustodialDestination) && req.Owner == "" {
		return newSwapError(StageWallet, KindWalletError, fmt.Errorf("custodial swaps require an owner wallet"))
	}
	if req.CustodialSource && !custodialSupported(req.InputMint) {
		return newSwapError(StageWallet, KindWalletError, fmt.Errorf("mint %s has no custodial balance support", req.InputMint))
	}
	if req.CustodialDestination && !custodialSupported(req.OutputMint) {
		return newSwapError(StageWallet, KindWalletError, fmt.Errorf("mint %s has no custodial balance support", req.OutputMint))
	}
	if (req.CustodialSource || req.CustodialDestination) && e.custodian == nil {
		return newSwapError(StageWallet, KindWalletError, fmt.Errorf("custodial service not configured"))
	}
	return nil
}

// validateTokens rejects mints that are neither base assets, registry
// entries, nor coins with a known record. Quoting an unknown mint would
// silently assume its precision.
func (e *Engine) validateTokens(ctx context.Context, req SwapRequest) error {
	for _, mint := range []string{req.InputMint, req.OutputMint} {
		if !e.quoter.KnownToken(ctx, mint) {
			return newSwapError(StageQuote, KindBuildFailed, fmt.Errorf("token %s not found in registry", mint))
		}
	}
	return nil
}

func (e *Engine) routeFor(req SwapRequest) Route {
	if registry.IsDirectlyRoutable(req.InputMint, req.OutputMint) {
		return RouteDirect
	}
	return RouteIndirect
}

// custodialSupported limits custodial sourcing to the mints the balance
// program actually holds.
func custodialSupported(mint string) bool {
	return mint == constants.PlatformTokenMint || mint == constants.USDCMint
}

func (e *Engine) errorResult(req SwapRequest, route Route, err error) *SwapExecutionResult {
	stage, kind := Classify(err)
	result := &SwapExecutionResult{
		Route:       route,
		Status:      StatusError,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InputAmount: quote.NewAmountFromUI(req.AmountUI, e.quoter.Decimals(req.InputMint)),
		Stage:       stage,
		ErrorKind:   kind,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (e *Engine) invalidate(ctx context.Context, req SwapRequest) {
	if e.state == nil {
		return
	}
	mints := []string{req.InputMint, req.OutputMint}
	if e.routeFor(req) == RouteIndirect {
		mints = append(mints, constants.PlatformTokenMint)
	}
	if err := e.state.InvalidateSwapState(ctx, req.Owner, mints...); err != nil {
		e.logger.WithError(err).Warn("failed to invalidate swap state")
	}
}

func (e *Engine) relayFirst(ctx context.Context) bool {
	if e.flags == nil {
		return true
	}
	return e.flags.RelayFirst(ctx)
}

func (e *Engine) aggregatorFallback(ctx context.Context) bool {
	if e.flags == nil {
		return true
	}
	return e.flags.AggregatorFallback(ctx)
}
