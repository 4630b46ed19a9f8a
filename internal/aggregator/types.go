package aggregator

// QuoteRequest holds parameters for the aggregator quote endpoint.
type QuoteRequest struct {
	InputMint  string
	OutputMint string
	Amount     string // raw integer as string (uint64)

	SlippageBps *uint16
	SwapMode    string // ExactIn | ExactOut

	OnlyDirectRoutes *bool
	MaxAccounts      *uint64
	DynamicSlippage  *bool
}

// QuoteResponse is the aggregator's quote. It is carried as an opaque payload
// into the matching swap-instructions call and must not be modified between
// the two.
type QuoteResponse struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          uint16          `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`

	ContextSlot uint64  `json:"contextSlot,omitempty"`
	TimeTaken   float64 `json:"timeTaken,omitempty"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  *uint8   `json:"percent,omitempty"`
	Bps      uint16   `json:"bps"`
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label,omitempty"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
}

// SwapInstructionsRequest asks the aggregator to materialize a quote into
// instructions. QuoteResponse must be the exact payload a prior Quote call
// returned.
type SwapInstructionsRequest struct {
	QuoteResponse           *QuoteResponse `json:"quoteResponse"`
	UserPublicKey           string         `json:"userPublicKey"`
	DestinationTokenAccount string         `json:"destinationTokenAccount,omitempty"`
	WrapAndUnwrapSol        bool           `json:"wrapAndUnwrapSol"`
	UseSharedAccounts       bool           `json:"useSharedAccounts"`
	DynamicSlippage         bool           `json:"dynamicSlippage,omitempty"`
}

// AccountMeta mirrors the wire shape of an instruction account reference.
type AccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// Instruction is a wire-format instruction (data is base64).
type Instruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      string        `json:"data"`
}

// SwapInstructionsResponse is the instruction set for one swap leg.
type SwapInstructionsResponse struct {
	TokenLedgerInstruction      *Instruction  `json:"tokenLedgerInstruction,omitempty"`
	ComputeBudgetInstructions   []Instruction `json:"computeBudgetInstructions,omitempty"`
	SetupInstructions           []Instruction `json:"setupInstructions,omitempty"`
	SwapInstruction             Instruction   `json:"swapInstruction"`
	CleanupInstruction          *Instruction  `json:"cleanupInstruction,omitempty"`
	AddressLookupTableAddresses []string      `json:"addressLookupTableAddresses"`
}
