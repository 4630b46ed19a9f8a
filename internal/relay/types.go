package relay

// Direction says which side of the bonding curve a trade hits.
type Direction string

const (
	DirectionBuy  Direction = "buy"  // base asset in, coin out
	DirectionSell Direction = "sell" // coin in, base asset out
)

// QuoteParams describes a single-coin trade against its pool.
type QuoteParams struct {
	Mint        string    `json:"mint"`
	Amount      string    `json:"amount"` // raw integer as string
	Direction   Direction `json:"direction"`
	SlippageBps uint16    `json:"slippageBps"`
}

// QuoteResponse is the relay's priced quote for one pool trade.
type QuoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	MinOutAmount   string `json:"minOutAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	Pool           string `json:"pool"`
	Migrated       bool   `json:"migrated"`
}

// SwapTransactionRequest asks the relay to build a pool swap transaction for
// the given wallet. The relay picks the pool program from the coin's
// migration state.
type SwapTransactionRequest struct {
	QuoteParams
	UserPublicKey string `json:"userPublicKey"`
}

// SwapTransactionResponse carries the unsigned transaction, base64-encoded in
// versioned wire format, plus the lookup tables it references.
type SwapTransactionResponse struct {
	Transaction                 string   `json:"transaction"`
	AddressLookupTableAddresses []string `json:"addressLookupTableAddresses"`
}

// BalanceAccountRequest asks for the custodial balance account of a wallet,
// creating it when absent.
type BalanceAccountRequest struct {
	Mint          string `json:"mint"`
	EthereumWallet string `json:"ethereumWallet"`
}

// BalanceAccountResponse reports the resolved account.
type BalanceAccountResponse struct {
	Account string `json:"account"`
	Created bool   `json:"created"`
}
