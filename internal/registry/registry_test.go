package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArtistMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

type mapCoinStore map[string]*CoinRecord

func (m mapCoinStore) CoinState(_ context.Context, mint string) (*CoinRecord, error) {
	return m[mint], nil
}

func TestIsDirectlyRoutable(t *testing.T) {
	// Base pairs always route on a single leg.
	assert.True(t, IsDirectlyRoutable(constants.WSOLMint, constants.USDCMint))
	assert.True(t, IsDirectlyRoutable(constants.USDCMint, constants.PlatformTokenMint))

	// Artist coin against the platform token is a single leg.
	assert.True(t, IsDirectlyRoutable(testArtistMint, constants.PlatformTokenMint))
	assert.True(t, IsDirectlyRoutable(constants.PlatformTokenMint, testArtistMint))

	// Artist coin against anything else must hop.
	assert.False(t, IsDirectlyRoutable(testArtistMint, constants.USDCMint))
	assert.False(t, IsDirectlyRoutable(constants.WSOLMint, testArtistMint))
}

func TestGetPoolState(t *testing.T) {
	ctx := context.Background()
	store := mapCoinStore{
		testArtistMint: {Mint: testArtistMint, BondingCurve: &BondingCurveState{Migrated: false}},
	}

	// Base mints never have a pool, even if a record exists.
	assert.False(t, GetPoolState(ctx, constants.USDCMint, store).HasPool())

	state := GetPoolState(ctx, testArtistMint, store)
	assert.True(t, state.IsBondingCurve)
	assert.False(t, state.IsMigratedAMM)

	store[testArtistMint].BondingCurve.Migrated = true
	state = GetPoolState(ctx, testArtistMint, store)
	assert.False(t, state.IsBondingCurve)
	assert.True(t, state.IsMigratedAMM)

	// Missing record or store falls back to no pool.
	assert.False(t, GetPoolState(ctx, "unknown-mint", store).HasPool())
	assert.False(t, GetPoolState(ctx, testArtistMint, nil).HasPool())
}

func TestNewRejectsInvalidTokens(t *testing.T) {
	_, err := New(TokenDescriptor{Symbol: "BAD", Mint: "not-base58", Decimals: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mint address")

	_, err = New(TokenDescriptor{Symbol: "BAD", Mint: testArtistMint})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimals is required")
}

func TestLoadMergesExtraTokens(t *testing.T) {
	extra := []TokenDescriptor{{Symbol: "ARTIST", Mint: testArtistMint, Decimals: constants.ArtistCoinDecimals}}
	data, err := json.Marshal(extra)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	reg, err := Load(path)
	require.NoError(t, err)

	tok, ok := reg.FindByAddress(testArtistMint)
	require.True(t, ok)
	assert.Equal(t, "ARTIST", tok.Symbol)

	// Defaults survive the merge.
	_, ok = reg.FindByAddress(constants.PlatformTokenMint)
	assert.True(t, ok)
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	reg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, reg.Tokens(), len(DefaultTokens))
}

func TestCustodialIdentifier(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)

	usdc, ok := reg.FindByAddress(constants.USDCMint)
	require.True(t, ok)
	assert.Equal(t, "USDC", usdc.CustodialIdentifier())

	sol, ok := reg.FindByAddress(constants.WSOLMint)
	require.True(t, ok)
	assert.Equal(t, constants.WSOLMint, sol.CustodialIdentifier())
}
