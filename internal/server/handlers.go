package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amplifihq/coinswap/internal/ai"
	"github.com/amplifihq/coinswap/internal/flags"
	"github.com/amplifihq/coinswap/internal/models"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/swap"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// SwapExecutor runs swaps end to end. Satisfied by swap.Engine.
type SwapExecutor interface {
	ExecuteSwap(ctx context.Context, req swap.SwapRequest) (*swap.SwapExecutionResult, error)
}

// QuoteSource prices pairs without executing. Satisfied by quote.Provider.
type QuoteSource interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amountUI float64, slippageBps uint16) (*quote.Quote, error)
}

// RecentSwapSource reads the recent-swap feed. Satisfied by cache.SwapCache.
type RecentSwapSource interface {
	GetRecentSwaps(ctx context.Context, limit int64) ([]models.SwapExecutionRecord, error)
}

// Handlers contains all dependencies for API endpoint handlers.
type Handlers struct {
	Engine       SwapExecutor
	Quotes       QuoteSource
	Cache        RecentSwapSource
	Flags        *flags.Store
	AI           *ai.Agent
	AIBaseConfig ai.AgentConfig
	DevMode      bool
	Logger       *logrus.Logger
}

// err returns a standardized JSON error response. Dev mode includes details.
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Quote prices a pair with the same provider the executors use. Query
// parameters: inputMint, outputMint, amountUi, slippageBps (optional).
func (h *Handlers) Quote(c echo.Context) error {
	if h.Quotes == nil {
		return h.err(c, http.StatusBadRequest, "quoting is not configured", nil)
	}

	inputMint := strings.TrimSpace(c.QueryParam("inputMint"))
	outputMint := strings.TrimSpace(c.QueryParam("outputMint"))
	amountStr := strings.TrimSpace(c.QueryParam("amountUi"))

	if inputMint == "" {
		return h.err(c, http.StatusBadRequest, "invalid inputMint", map[string]any{"inputMint": "required"})
	}
	if outputMint == "" {
		return h.err(c, http.StatusBadRequest, "invalid outputMint", map[string]any{"outputMint": "required"})
	}
	amountUI, err := strconv.ParseFloat(amountStr, 64)
	if err != nil || amountUI <= 0 {
		return h.err(c, http.StatusBadRequest, "invalid amountUi", map[string]any{"amountUi": "must be a positive number"})
	}

	var slippageBps uint16
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "must be uint16"})
		}
		slippageBps = uint16(n)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	q, err := h.Quotes.GetQuote(ctx, inputMint, outputMint, amountUI, slippageBps)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "quote failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, q)
}

// Swap executes a swap and returns the full execution result. Failures also
// return the result body: for a partial failure it carries the first-leg
// signature and the stranded balance the caller must recover.
func (h *Handlers) Swap(c echo.Context) error {
	if h.Engine == nil {
		return h.err(c, http.StatusBadRequest, "swap execution is not configured", nil)
	}

	var req SwapExecuteRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if req.InputMint == "" || req.OutputMint == "" {
		return h.err(c, http.StatusBadRequest, "inputMint and outputMint are required", nil)
	}
	if req.AmountUI <= 0 {
		return h.err(c, http.StatusBadRequest, "amountUi must be positive", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()

	result, err := h.Engine.ExecuteSwap(ctx, swap.SwapRequest{
		Owner:                req.Owner,
		InputMint:            req.InputMint,
		OutputMint:           req.OutputMint,
		AmountUI:             req.AmountUI,
		SlippageBps:          req.SlippageBps,
		CustodialSource:      req.CustodialSource,
		CustodialDestination: req.CustodialDestination,
	})
	if err != nil {
		h.Logger.WithError(err).Warn("swap execution failed")
		return c.JSON(http.StatusBadGateway, result)
	}
	return c.JSON(http.StatusOK, result)
}

// RecentSwaps returns the most recent executions, newest first. Accepts a
// limit query parameter (default 100, range 1-100).
func (h *Handlers) RecentSwaps(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Cache.GetRecentSwaps(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get swaps", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsUpsert creates or updates a runtime flag.
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing runtime flag by key.
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a runtime flag, 404 when absent.
func (h *Handlers) FlagsGet(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns all runtime flags.
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a runtime flag. 204 on success.
func (h *Handlers) FlagsDelete(c echo.Context) error {
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// AIAsk answers natural language questions over the execution telemetry.
// Supports an optional model override per request.
func (h *Handlers) AIAsk(c echo.Context) error {
	if h.AI == nil {
		return h.err(c, http.StatusBadRequest, "ai is not configured", nil)
	}

	var req AIAskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return h.err(c, http.StatusBadRequest, "question is required", map[string]any{"question": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()

	agent := h.AI
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg := h.AIBaseConfig
		cfg.Model = m
		tmp, err := ai.NewAgent(ctx, cfg)
		if err != nil {
			return h.err(c, http.StatusInternalServerError, "failed to create ai agent", nil)
		}
		agent = tmp
		defer func() {
			_ = tmp.Close()
		}()
	}

	res, err := agent.Ask(ctx, req.Question)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "ai ask failed", map[string]any{"err": err.Error()})
	}

	return c.JSON(http.StatusOK, AIAskResponse{SQL: res.SQL, Answer: res.Answer, TookMs: time.Since(start).Milliseconds()})
}
