package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteValidatesParams(t *testing.T) {
	client := NewClient("http://localhost:1", "")

	_, err := client.Quote(context.Background(), QuoteParams{Amount: "1", Direction: DirectionBuy})
	assert.ErrorContains(t, err, "mint")

	_, err = client.Quote(context.Background(), QuoteParams{Mint: "m", Direction: DirectionBuy})
	assert.ErrorContains(t, err, "amount")

	_, err = client.Quote(context.Background(), QuoteParams{Mint: "m", Amount: "1", Direction: "sideways"})
	assert.ErrorContains(t, err, "invalid direction")
}

func TestSwapTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/pool/swap", r.URL.Path)

		var req SwapTransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DirectionBuy, req.Direction)
		assert.Equal(t, "wallet111", req.UserPublicKey)

		json.NewEncoder(w).Encode(SwapTransactionResponse{
			Transaction:                 "AQABAg==",
			AddressLookupTableAddresses: []string{"2WB87JxGZieRd7hi3y87wq6HAsPLyb9zrSx8B5z1QEzM"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	resp, err := client.SwapTransaction(context.Background(), SwapTransactionRequest{
		QuoteParams: QuoteParams{
			Mint:      "coinMint",
			Amount:    "5000000",
			Direction: DirectionBuy,
		},
		UserPublicKey: "wallet111",
	})
	require.NoError(t, err)
	assert.Equal(t, "AQABAg==", resp.Transaction)
	assert.Len(t, resp.AddressLookupTableAddresses, 1)
}

func TestSwapTransactionRejectsEmptyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SwapTransactionResponse{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.SwapTransaction(context.Background(), SwapTransactionRequest{
		QuoteParams: QuoteParams{
			Mint:      "coinMint",
			Amount:    "5000000",
			Direction: DirectionSell,
		},
		UserPublicKey: "wallet111",
	})
	assert.ErrorContains(t, err, "empty transaction")
}

func TestHTTPErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Quote(context.Background(), QuoteParams{
		Mint:      "coinMint",
		Amount:    "1",
		Direction: DirectionSell,
	})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, httpErr.Error(), "pool not found")
}

func TestCreateBalanceAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/balance-account", r.URL.Path)
		json.NewEncoder(w).Encode(BalanceAccountResponse{Account: "acct111", Created: true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	resp, err := client.CreateBalanceAccount(context.Background(), BalanceAccountRequest{
		Mint:           "coinMint",
		EthereumWallet: "0xabc",
	})
	require.NoError(t, err)
	assert.Equal(t, "acct111", resp.Account)
	assert.True(t, resp.Created)
}
