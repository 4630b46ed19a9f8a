// Package quote prices swaps. Direct pairs get a single quote from the
// aggregator or the pool relay; artist-coin pairs are priced as two legs
// through the platform token and composed into one quote.
package quote

import (
	"fmt"
	"math"
	"strconv"

	"github.com/amplifihq/coinswap/internal/constants"
)

// Amount is a token amount in both raw (smallest unit) and UI form.
type Amount struct {
	Amount   uint64  `json:"amount"`
	UIAmount float64 `json:"uiAmount"`
	Decimals uint8   `json:"decimals"`
}

// NewAmountFromRaw converts a raw amount into its UI representation.
func NewAmountFromRaw(raw uint64, decimals uint8) Amount {
	return Amount{
		Amount:   raw,
		UIAmount: float64(raw) / math.Pow10(int(decimals)),
		Decimals: decimals,
	}
}

// NewAmountFromUI converts a UI amount into raw units, clamping at the safe
// quoting ceiling first. Requests above the ceiling cannot correspond to a
// real balance and would only make the pricing backend reject the call.
func NewAmountFromUI(ui float64, decimals uint8) Amount {
	if ui < 0 {
		ui = 0
	}
	if ui > constants.MaxSafeQuoteAmountUI {
		ui = constants.MaxSafeQuoteAmountUI
	}

	raw := uint64(math.Round(ui * math.Pow10(int(decimals))))
	return Amount{
		Amount:   raw,
		UIAmount: ui,
		Decimals: decimals,
	}
}

// RawString renders the raw amount the way the pricing APIs expect it.
func (a Amount) RawString() string {
	return strconv.FormatUint(a.Amount, 10)
}

func parseRawAmount(s string, decimals uint8) (Amount, error) {
	raw, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid raw amount %q: %w", s, err)
	}
	return NewAmountFromRaw(raw, decimals), nil
}

func parsePriceImpact(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
