package swap

import (
	"context"
	"time"

	"github.com/amplifihq/coinswap/internal/models"
)

// finalize reconciles cached state and records the execution. Everything here
// is best-effort: the swap's outcome is already decided and a telemetry
// hiccup must not turn a confirmed swap into an error.
func (e *Engine) finalize(ctx context.Context, req SwapRequest, result *SwapExecutionResult) {
	e.reconcileBalances(ctx, req, result)

	record := buildRecord(req, result)
	if e.feed != nil {
		if err := e.feed.AddRecentSwap(ctx, record); err != nil {
			e.logger.WithError(err).Warn("failed to publish swap record")
		}
	}
	if e.telemetry != nil {
		if err := e.telemetry.InsertExecution(ctx, record); err != nil {
			e.logger.WithError(err).Warn("failed to persist swap telemetry")
		}
	}
}

// reconcileBalances nudges the cached optimistic balances toward the swap's
// outcome, then drops the touched cache entries so the next full read comes
// from the chain. A partial failure credits the stranded intermediary
// balance instead of the requested output.
func (e *Engine) reconcileBalances(ctx context.Context, req SwapRequest, result *SwapExecutionResult) {
	if e.state == nil {
		return
	}

	switch {
	case result.Status == StatusSuccess:
		e.adjustBalance(ctx, req.Owner, result.InputMint, -result.InputAmount.UIAmount)
		e.adjustBalance(ctx, req.Owner, result.OutputMint, result.OutputAmount.UIAmount)
	case result.Stranded != nil && result.FirstLegSignature != "":
		e.adjustBalance(ctx, req.Owner, result.InputMint, -result.InputAmount.UIAmount)
		e.adjustBalance(ctx, req.Owner, result.Stranded.Mint, result.Stranded.Amount.UIAmount)
	default:
		// Nothing landed; caches are still accurate.
		return
	}

	e.invalidate(ctx, req)
}

func (e *Engine) adjustBalance(ctx context.Context, owner, mint string, delta float64) {
	if err := e.state.AdjustBalance(ctx, owner, mint, delta); err != nil {
		e.logger.WithError(err).WithField("mint", mint).Warn("failed to adjust cached balance")
	}
}

func buildRecord(req SwapRequest, result *SwapExecutionResult) *models.SwapExecutionRecord {
	record := &models.SwapExecutionRecord{
		Signature:         result.Signature,
		FirstLegSignature: result.FirstLegSignature,
		Timestamp:         time.Now().UTC(),
		Owner:             req.Owner,
		InputMint:         result.InputMint,
		OutputMint:        result.OutputMint,
		InputAmount:       result.InputAmount.UIAmount,
		OutputAmount:      result.OutputAmount.UIAmount,
		Route:             string(result.Route),
		Status:            string(result.Status),
		Stage:             string(result.Stage),
		ErrorKind:         string(result.ErrorKind),
		ErrorMessage:      result.Error,
		DurationMS:        result.Duration.Milliseconds(),
	}
	if result.Stranded != nil {
		record.StrandedMint = result.Stranded.Mint
		record.StrandedAmount = result.Stranded.Amount.UIAmount
	}
	return record
}
