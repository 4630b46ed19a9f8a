package swap

import (
	"context"
)

// executeDirect runs a single-leg swap: one quote, one transaction.
func (e *Engine) executeDirect(ctx context.Context, req SwapRequest) (*SwapExecutionResult, error) {
	q, err := e.quoter.GetQuote(ctx, req.InputMint, req.OutputMint, req.AmountUI, req.SlippageBps)
	if err != nil {
		serr := newSwapError(StageQuote, KindQuoteFailed, err)
		return e.errorResult(req, RouteDirect, serr), serr
	}

	sig, err := e.executeLeg(ctx, req, q, legOptions{
		custodialSource:      req.CustodialSource,
		custodialDestination: req.CustodialDestination,
		owner:                req.Owner,
	})
	if err != nil {
		result := e.errorResult(req, RouteDirect, err)
		result.Signature = sig
		result.InputAmount = q.In
		return result, err
	}

	return &SwapExecutionResult{
		Signature:    sig,
		Route:        RouteDirect,
		Status:       StatusSuccess,
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InputAmount:  q.In,
		OutputAmount: q.Out,
	}, nil
}
