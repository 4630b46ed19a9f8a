package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/amplifihq/coinswap/internal/aggregator"
	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/amplifihq/coinswap/internal/custodial"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/registry"
	"github.com/amplifihq/coinswap/internal/relay"
	"github.com/amplifihq/coinswap/internal/spl"
	"github.com/gagliardetto/solana-go"
)

// legStages qualifies pipeline stages by leg so a second-leg failure is
// distinguishable: it means value is parked in the intermediary token.
type legStages struct {
	quote  Stage
	build  Stage
	submit Stage
}

func stagesFor(secondLeg bool) legStages {
	if secondLeg {
		return legStages{
			quote:  StageSecondLegQuote,
			build:  StageSecondLegBuild,
			submit: StageSecondLegSubmit,
		}
	}
	return legStages{
		quote:  StageQuote,
		build:  StageBuild,
		submit: StageSubmit,
	}
}

type legOptions struct {
	secondLeg bool

	// custodialSource prepends an authorized withdrawal from the owner's
	// custodial balance into the session wallet before the swap.
	custodialSource bool
	// custodialDestination lands the output in the owner's custodial balance
	// account.
	custodialDestination bool

	owner string // ethereum wallet for custodial flows
}

// legAssembly accumulates the instructions that surround the swap instruction
// and the scratch accounts they open. Scratch accounts only stage funds that
// move on within the same transaction; each one gets a close instruction
// after the swap so no temporary account outlives the leg.
type legAssembly struct {
	pre     []solana.Instruction
	scratch []solana.PublicKey
}

func (a *legAssembly) openScratch(account solana.PublicKey) {
	a.scratch = append(a.scratch, account)
}

// closes returns one close-account instruction per scratch account, lamports
// back to the session wallet. For the native mint the close doubles as the
// unwrap.
func (a *legAssembly) closes(owner solana.PublicKey) []solana.Instruction {
	out := make([]solana.Instruction, 0, len(a.scratch))
	for _, account := range a.scratch {
		out = append(out, spl.NewTokenCloseAccountIx(account, owner, owner))
	}
	return out
}

// executeLeg runs one leg to a confirmed signature, retrying each liquidity
// source independently. Pool-coin legs go through the relay when enabled,
// falling back to the aggregator once the relay attempts are exhausted;
// everything else is assembled from aggregator instructions. The signature is
// returned even when confirmation fails, because the transaction may still
// land.
func (e *Engine) executeLeg(ctx context.Context, req SwapRequest, leg *quote.Quote, opt legOptions) (string, error) {
	st := stagesFor(opt.secondLeg)
	policy := e.legPolicy(req)

	if leg.Source == quote.SourceBondingCurve && e.relay != nil {
		if e.relayFirst(ctx) {
			sig, _, err := policy.ExecuteLeg(ctx, func(ctx context.Context) (string, error) {
				return e.executeRelayLeg(ctx, leg, opt, st)
			})
			if err == nil || sig != "" {
				return sig, err
			}
			if !e.aggregatorFallback(ctx) {
				return "", err
			}
			e.logger.WithError(err).Warn("pool relay leg failed, falling back to aggregator")
		}

		aggLeg, err := e.quoter.AggregatorLeg(ctx, leg.InputMint, leg.OutputMint, leg.In, leg.SlippageBps)
		if err != nil {
			return "", newSwapError(st.quote, KindQuoteFailed, err)
		}
		leg = aggLeg
	}

	sig, _, err := policy.ExecuteLeg(ctx, func(ctx context.Context) (string, error) {
		return e.executeAggregatorLeg(ctx, leg, opt, st)
	})
	return sig, err
}

// legPolicy scopes the retry policy to one leg, invalidating cached swap
// state before every re-attempt so a retry never replays stale balances.
func (e *Engine) legPolicy(req SwapRequest) RetryPolicy {
	policy := e.retry
	policy.Logger = e.logger
	policy.BeforeRetry = func(ctx context.Context, _ int) {
		e.invalidate(ctx, req)
	}
	return policy
}

// executeAggregatorLeg materializes an aggregator quote into instructions and
// submits them as one transaction. Shared accounts are tried first; when the
// route rejects them the leg is rebuilt with an explicit output account.
func (e *Engine) executeAggregatorLeg(ctx context.Context, leg *quote.Quote, opt legOptions, st legStages) (string, error) {
	if leg.Aggregator == nil {
		return "", newSwapError(st.build, KindBuildFailed, fmt.Errorf("leg has no aggregator quote payload"))
	}

	owner := e.wallet.PublicKey()

	var asm legAssembly
	if err := e.prepareInput(ctx, leg, opt, st, &asm); err != nil {
		return "", err
	}

	destination, err := e.resolveDestination(ctx, leg, opt, st)
	if err != nil {
		return "", err
	}

	ixReq := aggregator.SwapInstructionsRequest{
		QuoteResponse: leg.Aggregator,
		UserPublicKey: owner.String(),
		// The wrap is staged locally when the input is native SOL; the
		// aggregator only handles the output side then.
		WrapAndUnwrapSol:  leg.InputMint != constants.WSOLMint,
		UseSharedAccounts: true,
	}
	if !destination.IsZero() {
		ixReq.DestinationTokenAccount = destination.String()
	}

	resp, err := e.instructions.SwapInstructions(ctx, ixReq)
	if err != nil {
		var httpErr *aggregator.HTTPError
		if !errors.As(err, &httpErr) {
			return "", newSwapError(st.build, KindBuildFailed, err)
		}

		// Some routes cannot use the shared intermediate accounts. Rebuild
		// with an explicit output account owned by the session wallet.
		e.logger.WithError(err).Debug("shared accounts rejected, retrying with explicit output account")
		ixReq.UseSharedAccounts = false
		if destination.IsZero() {
			outputMint, perr := solana.PublicKeyFromBase58(leg.OutputMint)
			if perr != nil {
				return "", newSwapError(st.build, KindBuildFailed, perr)
			}
			ata, aerr := e.ensureOwnerTokenAccount(outputMint, &asm)
			if aerr != nil {
				return "", newSwapError(st.build, KindBuildFailed, aerr)
			}
			ixReq.DestinationTokenAccount = ata.String()
		}

		resp, err = e.instructions.SwapInstructions(ctx, ixReq)
		if err != nil {
			return "", newSwapError(st.build, KindBuildFailed, err)
		}
	}

	ixs := make([]solana.Instruction, 0, len(asm.pre)+len(resp.ComputeBudgetInstructions)+len(resp.SetupInstructions)+len(asm.scratch)+2)

	converted, err := aggregator.ConvertInstructions(resp.ComputeBudgetInstructions)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}
	ixs = append(ixs, converted...)
	ixs = append(ixs, asm.pre...)

	converted, err = aggregator.ConvertInstructions(resp.SetupInstructions)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}
	ixs = append(ixs, converted...)

	swapIx, err := aggregator.ConvertInstruction(resp.SwapInstruction)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}
	ixs = append(ixs, swapIx)

	if resp.CleanupInstruction != nil {
		cleanupIx, err := aggregator.ConvertInstruction(*resp.CleanupInstruction)
		if err != nil {
			return "", newSwapError(st.build, KindBuildFailed, err)
		}
		ixs = append(ixs, cleanupIx)
	}

	// Scratch accounts close after the swap spent or forwarded their funds.
	ixs = append(ixs, asm.closes(owner)...)

	tables, err := e.lookupTables(resp.AddressLookupTableAddresses)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}

	return e.buildAndSubmit(ctx, ixs, tables, st)
}

// executeRelayLeg asks the pool relay for a swap transaction, splices the
// pool program instruction out of it, and resubmits it inside our own
// transaction together with account staging and cleanup.
func (e *Engine) executeRelayLeg(ctx context.Context, leg *quote.Quote, opt legOptions, st legStages) (string, error) {
	coinMint, direction := poolSide(leg)
	if coinMint == "" {
		return "", newSwapError(st.build, KindBuildFailed, fmt.Errorf("no pool coin on leg %s -> %s", leg.InputMint, leg.OutputMint))
	}

	resp, err := e.relay.SwapTransaction(ctx, relay.SwapTransactionRequest{
		QuoteParams: relay.QuoteParams{
			Mint:        coinMint,
			Amount:      leg.In.RawString(),
			Direction:   direction,
			SlippageBps: leg.SlippageBps,
		},
		UserPublicKey: e.wallet.PublicKey().String(),
	})
	if err != nil {
		return "", newSwapError(st.build, KindRelayFailed, err)
	}

	poolIx, err := e.splicePoolInstruction(ctx, resp.Transaction)
	if err != nil {
		return "", newSwapError(st.build, KindRelayFailed, err)
	}

	var asm legAssembly
	if err := e.prepareInput(ctx, leg, opt, st, &asm); err != nil {
		return "", err
	}

	// The pool instruction expects the output account to exist.
	outputMint, err := solana.PublicKeyFromBase58(leg.OutputMint)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}
	outAta, err := e.ensureOwnerTokenAccount(outputMint, &asm)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}

	ixs := append(asm.pre, poolIx)

	if opt.custodialDestination {
		// The pool pays the session wallet's ATA; forward the output into
		// the owner's balance account and close the staging account.
		balanceAccount, berr := e.custodian.GetOrCreateBalanceAccount(ctx, opt.owner, outputMint)
		if berr != nil {
			return "", newSwapError(st.build, KindWalletError, berr)
		}
		ixs = append(ixs, spl.NewTokenTransferIx(outAta, balanceAccount, e.wallet.PublicKey(), leg.Out.Amount))
		asm.openScratch(outAta)
	}

	ixs = append(ixs, asm.closes(e.wallet.PublicKey())...)

	tables, err := e.lookupTables(resp.AddressLookupTableAddresses)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}

	return e.buildAndSubmit(ctx, ixs, tables, st)
}

// prepareInput stages the leg's input: an authorized withdrawal when the
// input comes from a custodial balance, or a wrap when the input is native
// SOL. Either way the funds land in a scratch token account that is closed
// after the swap.
func (e *Engine) prepareInput(ctx context.Context, leg *quote.Quote, opt legOptions, st legStages, asm *legAssembly) error {
	switch {
	case opt.custodialSource:
		inputMint, err := solana.PublicKeyFromBase58(leg.InputMint)
		if err != nil {
			return newSwapError(st.build, KindBuildFailed, err)
		}
		ata, err := e.ensureOwnerTokenAccount(inputMint, asm)
		if err != nil {
			return newSwapError(st.build, KindBuildFailed, err)
		}
		asm.openScratch(ata)

		params := custodial.TransferParams{
			EthWallet:   opt.owner,
			Mint:        inputMint,
			Amount:      leg.In.Amount,
			Destination: ata,
			Payer:       e.wallet.PublicKey(),
		}
		if leg.InputMint == constants.USDCMint {
			params.Memo = constants.InternalTransferMemo
			params.MemoSigner = e.wallet.PublicKey()
		}

		transfer, err := e.custodian.TransferInstructions(ctx, params)
		if err != nil {
			return newSwapError(st.build, KindWalletError, err)
		}
		asm.pre = append(asm.pre, transfer...)

	case leg.InputMint == constants.WSOLMint:
		// Wrap the lamports ourselves instead of leaning on the aggregator:
		// fund the wSOL account, sync it, and let the close after the swap
		// unwrap whatever is left.
		mint := solana.MustPublicKeyFromBase58(constants.WSOLMint)
		ata, err := e.ensureOwnerTokenAccount(mint, asm)
		if err != nil {
			return newSwapError(st.build, KindBuildFailed, err)
		}
		asm.pre = append(asm.pre,
			spl.NewSystemTransferIx(e.wallet.PublicKey(), ata, leg.In.Amount),
			spl.NewTokenSyncNativeIx(ata),
		)
		asm.openScratch(ata)
	}

	return nil
}

// resolveDestination picks an explicit output account when the leg should not
// settle into the session wallet's ATA.
func (e *Engine) resolveDestination(ctx context.Context, leg *quote.Quote, opt legOptions, st legStages) (solana.PublicKey, error) {
	if !opt.custodialDestination {
		return solana.PublicKey{}, nil
	}

	outputMint, err := solana.PublicKeyFromBase58(leg.OutputMint)
	if err != nil {
		return solana.PublicKey{}, newSwapError(st.build, KindBuildFailed, err)
	}

	account, err := e.custodian.GetOrCreateBalanceAccount(ctx, opt.owner, outputMint)
	if err != nil {
		return solana.PublicKey{}, newSwapError(st.build, KindWalletError, err)
	}
	return account, nil
}

// buildAndSubmit assembles, signs, sends and confirms one transaction. The
// signature is returned alongside a confirmation error so callers can tell a
// possibly-landed transaction from one that never left the building.
func (e *Engine) buildAndSubmit(ctx context.Context, ixs []solana.Instruction, tables []solana.PublicKey, st legStages) (string, error) {
	tx, err := e.wallet.BuildTransaction(ctx, ixs, tables)
	if err != nil {
		return "", newSwapError(st.build, KindBuildFailed, err)
	}
	if err := e.wallet.SignTx(tx); err != nil {
		return "", newSwapError(st.build, KindWalletError, err)
	}

	sig, err := e.wallet.SendTx(ctx, tx, nil)
	if err != nil {
		return "", newSwapError(st.submit, KindRelayFailed, err)
	}

	if err := e.wallet.ConfirmTransaction(ctx, sig, constants.ConfirmCommitment, e.confirmTimeout); err != nil {
		return sig, newSwapError(st.submit, KindRelayFailed, err)
	}
	return sig, nil
}

// lookupTables merges the leg's tables with the platform-wide table, deduped.
func (e *Engine) lookupTables(addrs []string) ([]solana.PublicKey, error) {
	seen := make(map[solana.PublicKey]struct{}, len(addrs)+1)
	out := make([]solana.PublicKey, 0, len(addrs)+1)

	add := func(pk solana.PublicKey) {
		if _, ok := seen[pk]; ok {
			return
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}

	for _, addr := range addrs {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid lookup table address %q: %w", addr, err)
		}
		add(pk)
	}
	add(e.lookupTable)

	return out, nil
}

// ensureOwnerTokenAccount derives the session wallet's ATA for a mint and
// appends an idempotent create so the transaction never depends on prior
// account state.
func (e *Engine) ensureOwnerTokenAccount(mint solana.PublicKey, asm *legAssembly) (solana.PublicKey, error) {
	owner := e.wallet.PublicKey()
	ata, _, err := spl.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	asm.pre = append(asm.pre, spl.NewCreateAssociatedTokenAccountIdempotentIx(owner, ata, owner, mint))
	return ata, nil
}

// poolSide identifies the pool coin on a leg and the trade direction.
func poolSide(leg *quote.Quote) (string, relay.Direction) {
	if !registry.IsBaseMint(leg.InputMint) {
		return leg.InputMint, relay.DirectionSell
	}
	if !registry.IsBaseMint(leg.OutputMint) {
		return leg.OutputMint, relay.DirectionBuy
	}
	return "", ""
}
