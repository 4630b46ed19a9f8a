package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Operational kill switches read per execution. Both default to enabled when
// unset so a cold redis never blocks swaps.
const (
	// KeyRelayFirst routes pool-coin legs through the pool relay before the
	// general aggregator.
	KeyRelayFirst = "swap.relay_first"
	// KeyAggregatorFallback allows a failed relay leg to be retried on the
	// general aggregator.
	KeyAggregatorFallback = "swap.aggregator_fallback"
)
