package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amplifihq/coinswap/internal/models"
	"github.com/amplifihq/coinswap/internal/quote"
	"github.com/amplifihq/coinswap/internal/swap"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	req    swap.SwapRequest
	result *swap.SwapExecutionResult
	err    error
}

func (f *fakeExecutor) ExecuteSwap(_ context.Context, req swap.SwapRequest) (*swap.SwapExecutionResult, error) {
	f.req = req
	return f.result, f.err
}

type fakeQuotes struct {
	quote *quote.Quote
	err   error
}

func (f *fakeQuotes) GetQuote(_ context.Context, inputMint, outputMint string, amountUI float64, slippageBps uint16) (*quote.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	q := *f.quote
	q.InputMint = inputMint
	q.OutputMint = outputMint
	return &q, nil
}

type fakeRecent struct {
	limit int64
	items []models.SwapExecutionRecord
}

func (f *fakeRecent) GetRecentSwaps(_ context.Context, limit int64) ([]models.SwapExecutionRecord, error) {
	f.limit = limit
	return f.items, nil
}

func newContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHealth(t *testing.T) {
	h := &Handlers{Logger: logrus.New()}
	c, rec := newContext(t, http.MethodGet, "/v1/health", "")

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestQuoteValidation(t *testing.T) {
	h := &Handlers{Quotes: &fakeQuotes{}, Logger: logrus.New()}

	cases := []string{
		"/v1/quote?outputMint=b&amountUi=1",
		"/v1/quote?inputMint=a&amountUi=1",
		"/v1/quote?inputMint=a&outputMint=b",
		"/v1/quote?inputMint=a&outputMint=b&amountUi=-2",
		"/v1/quote?inputMint=a&outputMint=b&amountUi=1&slippageBps=99999",
	}
	for _, target := range cases {
		c, rec := newContext(t, http.MethodGet, target, "")
		require.NoError(t, h.Quote(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestQuoteSuccess(t *testing.T) {
	q := &quote.Quote{Rate: 0.95, Source: quote.SourceAggregator}
	h := &Handlers{Quotes: &fakeQuotes{quote: q}, Logger: logrus.New()}

	c, rec := newContext(t, http.MethodGet, "/v1/quote?inputMint=a&outputMint=b&amountUi=2.5", "")
	require.NoError(t, h.Quote(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var out quote.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "a", out.InputMint)
	assert.Equal(t, "b", out.OutputMint)
	assert.InDelta(t, 0.95, out.Rate, 1e-12)
}

func TestQuoteBackendFailure(t *testing.T) {
	h := &Handlers{Quotes: &fakeQuotes{err: fmt.Errorf("no route")}, Logger: logrus.New()}

	c, rec := newContext(t, http.MethodGet, "/v1/quote?inputMint=a&outputMint=b&amountUi=1", "")
	require.NoError(t, h.Quote(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSwapSuccess(t *testing.T) {
	exec := &fakeExecutor{result: &swap.SwapExecutionResult{
		Signature: "sig-1",
		Route:     swap.RouteDirect,
		Status:    swap.StatusSuccess,
	}}
	h := &Handlers{Engine: exec, Logger: logrus.New()}

	body := `{"owner":"0xabc","inputMint":"a","outputMint":"b","amountUi":2,"slippageBps":75,"custodialSource":true}`
	c, rec := newContext(t, http.MethodPost, "/v1/swap", body)
	require.NoError(t, h.Swap(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "0xabc", exec.req.Owner)
	assert.Equal(t, uint16(75), exec.req.SlippageBps)
	assert.True(t, exec.req.CustodialSource)

	var out swap.SwapExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "sig-1", out.Signature)
}

func TestSwapPartialFailureKeepsResultBody(t *testing.T) {
	exec := &fakeExecutor{
		result: &swap.SwapExecutionResult{
			FirstLegSignature: "sig-leg1",
			Route:             swap.RouteIndirect,
			Status:            swap.StatusError,
			Stage:             swap.StageSecondLegSubmit,
			ErrorKind:         swap.KindRelayFailed,
			Stranded:          &swap.StrandedBalance{Mint: "platform"},
		},
		err: fmt.Errorf("second leg failed"),
	}
	h := &Handlers{Engine: exec, Logger: logrus.New()}

	body := `{"inputMint":"a","outputMint":"b","amountUi":2}`
	c, rec := newContext(t, http.MethodPost, "/v1/swap", body)
	require.NoError(t, h.Swap(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The caller still gets the partial result to drive recovery.
	var out swap.SwapExecutionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "sig-leg1", out.FirstLegSignature)
	require.NotNil(t, out.Stranded)
	assert.Equal(t, "platform", out.Stranded.Mint)
}

func TestSwapValidation(t *testing.T) {
	h := &Handlers{Engine: &fakeExecutor{}, Logger: logrus.New()}

	for _, body := range []string{
		`{"outputMint":"b","amountUi":1}`,
		`{"inputMint":"a","amountUi":1}`,
		`{"inputMint":"a","outputMint":"b","amountUi":0}`,
		`not json`,
	} {
		c, rec := newContext(t, http.MethodPost, "/v1/swap", body)
		require.NoError(t, h.Swap(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRecentSwaps(t *testing.T) {
	recent := &fakeRecent{items: []models.SwapExecutionRecord{{Signature: "s1"}, {Signature: "s2"}}}
	h := &Handlers{Cache: recent, Logger: logrus.New()}

	c, rec := newContext(t, http.MethodGet, "/v1/swaps/recent?limit=25", "")
	require.NoError(t, h.RecentSwaps(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(25), recent.limit)

	var out struct {
		Items []models.SwapExecutionRecord `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Items, 2)
}

func TestRecentSwapsLimitBounds(t *testing.T) {
	h := &Handlers{Cache: &fakeRecent{}, Logger: logrus.New()}

	for _, target := range []string{
		"/v1/swaps/recent?limit=0",
		"/v1/swaps/recent?limit=101",
		"/v1/swaps/recent?limit=abc",
	} {
		c, rec := newContext(t, http.MethodGet, target, "")
		require.NoError(t, h.RecentSwaps(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
