// Package swap orchestrates token swap execution: route classification,
// per-leg quoting, transaction assembly across the aggregator and the pool
// relay, custodial sourcing, confirmation, and recovery bookkeeping when a
// multi-leg swap dies halfway.
package swap

import (
	"errors"
	"fmt"
	"time"

	"github.com/amplifihq/coinswap/internal/quote"
)

// Stage labels where in the pipeline an execution failed. Second-leg stages
// are distinct because a failure there leaves value parked in the
// intermediary token.
type Stage string

const (
	StageWallet Stage = "wallet"
	StageQuote  Stage = "quote"
	StageBuild  Stage = "build"
	StageSubmit Stage = "submit"

	StageSecondLegQuote  Stage = "second_leg_quote"
	StageSecondLegBuild  Stage = "second_leg_build"
	StageSecondLegSubmit Stage = "second_leg_submit"
)

// ErrorKind buckets failures for metrics and client display.
type ErrorKind string

const (
	KindWalletError ErrorKind = "WALLET_ERROR"
	KindQuoteFailed ErrorKind = "QUOTE_FAILED"
	KindBuildFailed ErrorKind = "BUILD_FAILED"
	KindRelayFailed ErrorKind = "RELAY_FAILED"
	KindUnknown     ErrorKind = "UNKNOWN"
)

// SwapError carries the failing stage and kind alongside the cause.
type SwapError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}

func newSwapError(stage Stage, kind ErrorKind, err error) *SwapError {
	return &SwapError{Stage: stage, Kind: kind, Err: err}
}

// Classify extracts the stage and kind from any error. Errors that did not
// come out of the pipeline map to UNKNOWN.
func Classify(err error) (Stage, ErrorKind) {
	var se *SwapError
	if errors.As(err, &se) {
		return se.Stage, se.Kind
	}
	return "", KindUnknown
}

// Route names how a pair was executed.
type Route string

const (
	RouteDirect   Route = "direct"
	RouteIndirect Route = "indirect"
)

// Status is the terminal state of one execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// SwapRequest describes one user swap.
type SwapRequest struct {
	// Owner tags cache and telemetry entries; for custodial swaps it is the
	// Ethereum wallet the balance accounts derive from.
	Owner string

	InputMint  string
	OutputMint string
	AmountUI   float64

	// Zero means the default tolerance.
	SlippageBps uint16

	// CustodialSource pulls the input from the owner's custodial balance
	// account instead of the session wallet's token account.
	CustodialSource bool
	// CustodialDestination lands the output in the owner's custodial balance
	// account. Only meaningful for mints with custodial support.
	CustodialDestination bool
}

// StrandedBalance reports value parked in the intermediary token after a
// second-leg failure. The first leg landed on-chain, so the user owns this
// amount even though the requested output never arrived.
type StrandedBalance struct {
	Mint   string       `json:"mint"`
	Amount quote.Amount `json:"amount"`
}

// SwapExecutionResult is the terminal report for one execution attempt.
type SwapExecutionResult struct {
	Signature string `json:"signature,omitempty"`
	// Set on indirect swaps once the first leg lands, including partial
	// failures where the second leg never did.
	FirstLegSignature string `json:"firstLegSignature,omitempty"`

	Route  Route  `json:"route"`
	Status Status `json:"status"`

	InputMint    string       `json:"inputMint"`
	OutputMint   string       `json:"outputMint"`
	InputAmount  quote.Amount `json:"inputAmount"`
	OutputAmount quote.Amount `json:"outputAmount"`

	Stage     Stage     `json:"stage,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Error     string    `json:"error,omitempty"`

	Stranded *StrandedBalance `json:"stranded,omitempty"`

	Duration time.Duration `json:"-"`
}

// Landed reports whether any transaction from this execution is on-chain.
// Retrying a landed execution would double-spend the input.
func (r *SwapExecutionResult) Landed() bool {
	if r == nil {
		return false
	}
	return r.Signature != "" || r.FirstLegSignature != ""
}
