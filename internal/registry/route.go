package registry

import (
	"context"

	"github.com/amplifihq/coinswap/internal/constants"
)

var baseMintSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(constants.BaseMints))
	for _, mint := range constants.BaseMints {
		m[mint] = struct{}{}
	}
	return m
}()

// IsBaseMint reports whether a mint belongs to the fixed non-artist set.
func IsBaseMint(mint string) bool {
	_, ok := baseMintSet[mint]
	return ok
}

// IsDirectlyRoutable decides whether a pair can be swapped in a single leg.
// True when both assets are base (non-artist) tokens, or when either side is
// the platform token itself. Everything else must hop through the platform
// token. Pure classification: no I/O, total over all string pairs.
func IsDirectlyRoutable(mintA, mintB string) bool {
	if IsBaseMint(mintA) && IsBaseMint(mintB) {
		return true
	}
	// One side is an artist coin; only a platform-token counter-asset keeps
	// the pair on a single leg.
	return mintA == constants.PlatformTokenMint || mintB == constants.PlatformTokenMint
}

// PoolState is the per-asset liquidity flag pair.
type PoolState struct {
	IsBondingCurve bool // active, pre-migration bonding-curve pool
	IsMigratedAMM  bool // pool graduated to the standard AMM
}

// HasPool reports whether either pool form exists for the asset.
func (p PoolState) HasPool() bool {
	return p.IsBondingCurve || p.IsMigratedAMM
}

// BondingCurveState is the pool-lifecycle portion of a coin record.
type BondingCurveState struct {
	Migrated bool `json:"migrated"`
}

// CoinRecord is the cached artist-coin metadata the pool-state lookup reads.
type CoinRecord struct {
	Mint         string             `json:"mint"`
	Ticker       string             `json:"ticker,omitempty"`
	BondingCurve *BondingCurveState `json:"bonding_curve,omitempty"`
}

// CoinStateStore provides cached coin records. Implemented by the redis swap
// cache; tests supply an in-memory map.
type CoinStateStore interface {
	CoinState(ctx context.Context, mint string) (*CoinRecord, error)
}

// GetPoolState derives the pool flags for an asset. Base mints never have a
// pool and skip the lookup entirely. A missing or unreadable record is
// treated as "no pool" so the caller falls back to the general aggregator.
func GetPoolState(ctx context.Context, mint string, store CoinStateStore) PoolState {
	if IsBaseMint(mint) {
		return PoolState{}
	}
	if store == nil {
		return PoolState{}
	}

	record, err := store.CoinState(ctx, mint)
	if err != nil || record == nil || record.BondingCurve == nil {
		return PoolState{}
	}

	return PoolState{
		IsBondingCurve: !record.BondingCurve.Migrated,
		IsMigratedAMM:  record.BondingCurve.Migrated,
	}
}
