package swap

import (
	"context"
	"fmt"
	"strconv"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/spl"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// executeIndirect runs a two-leg swap through the platform token. The second
// leg only starts after the first leg is confirmed, and it spends what the
// first leg actually delivered rather than what was quoted: settling short is
// normal within slippage, and overspending the quoted amount could drain
// platform tokens the user already held.
func (e *Engine) executeIndirect(ctx context.Context, req SwapRequest) (*SwapExecutionResult, error) {
	q, err := e.quoter.GetQuote(ctx, req.InputMint, req.OutputMint, req.AmountUI, req.SlippageBps)
	if err != nil {
		serr := newSwapError(StageQuote, KindQuoteFailed, err)
		return e.errorResult(req, RouteIndirect, serr), serr
	}
	first, second := q.FirstLeg, q.SecondLeg

	sig1, err := e.executeLeg(ctx, req, first, legOptions{
		custodialSource: req.CustodialSource,
		owner:           req.Owner,
	})
	if err != nil {
		result := e.errorResult(req, RouteIndirect, err)
		result.FirstLegSignature = sig1
		result.InputAmount = first.In
		if sig1 != "" {
			// Sent but unconfirmed: the intermediary amount may or may not
			// exist, report the quoted figure.
			result.Stranded = &StrandedBalance{
				Mint:   constants.PlatformTokenMint,
				Amount: first.Out,
			}
		}
		return result, fmt.Errorf("first leg %s -> %s failed: %w", req.InputMint, constants.PlatformTokenMint, err)
	}

	// The first leg is on-chain now. Everything below must surface the
	// stranded intermediary balance on failure so the caller can recover it.

	actual, err := e.intermediaryBalance(ctx)
	if err != nil {
		serr := newSwapError(StageWallet, KindWalletError, err)
		result := e.partialResult(req, first, sig1, first.Out, serr)
		return result, serr
	}

	spend := second.In
	if actual < second.In.Amount {
		spend = quote.NewAmountFromRaw(actual, second.In.Decimals)
		e.logger.WithFields(logrus.Fields{
			"quoted": second.In.Amount,
			"actual": actual,
		}).Info("first leg settled short, re-pricing second leg")

		second, err = e.quoter.LegQuote(ctx, constants.PlatformTokenMint, req.OutputMint, spend, req.SlippageBps)
		if err != nil {
			serr := newSwapError(StageSecondLegQuote, KindQuoteFailed, err)
			result := e.partialResult(req, first, sig1, spend, serr)
			return result, serr
		}
	}

	sig2, err := e.executeLeg(ctx, req, second, legOptions{
		secondLeg:            true,
		custodialDestination: req.CustodialDestination,
		owner:                req.Owner,
	})
	if err != nil {
		result := e.partialResult(req, first, sig1, spend, err)
		result.Signature = sig2
		return result, fmt.Errorf("second leg %s -> %s failed: %w", constants.PlatformTokenMint, req.OutputMint, err)
	}

	return &SwapExecutionResult{
		Signature:         sig2,
		FirstLegSignature: sig1,
		Route:             RouteIndirect,
		Status:            StatusSuccess,
		InputMint:         req.InputMint,
		OutputMint:        req.OutputMint,
		InputAmount:       first.In,
		OutputAmount:      second.Out,
	}, nil
}

// partialResult reports a confirmed first leg with a failed remainder: the
// user's input is gone and its value sits in the intermediary token.
func (e *Engine) partialResult(req SwapRequest, first *quote.Quote, sig1 string, stranded quote.Amount, err error) *SwapExecutionResult {
	result := e.errorResult(req, RouteIndirect, err)
	result.FirstLegSignature = sig1
	result.InputAmount = first.In
	result.Stranded = &StrandedBalance{
		Mint:   constants.PlatformTokenMint,
		Amount: stranded,
	}
	return result
}

// intermediaryBalance reads the session wallet's confirmed platform token
// balance in raw units.
func (e *Engine) intermediaryBalance(ctx context.Context) (uint64, error) {
	mint := solana.MustPublicKeyFromBase58(constants.PlatformTokenMint)
	ata, _, err := spl.FindAssociatedTokenAddress(e.wallet.PublicKey(), mint)
	if err != nil {
		return 0, err
	}

	balance, err := e.wallet.GetTokenAccountBalance(ctx, ata, constants.ConfirmCommitment)
	if err != nil {
		return 0, fmt.Errorf("failed to read intermediary balance: %w", err)
	}

	raw, err := strconv.ParseUint(balance.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid intermediary balance %q: %w", balance.Amount, err)
	}
	return raw, nil
}
