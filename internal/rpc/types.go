package rpc

// RPCError represents a JSON-RPC error response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// TokenAmount represents token balance information.
type TokenAmount struct {
	Amount         string  `json:"amount"`
	Decimals       int     `json:"decimals"`
	UIAmountString string  `json:"uiAmountString"`
	UIAmount       float64 `json:"uiAmount"`
}

// TokenBalanceResponse is the response from getTokenAccountBalance.
type TokenBalanceResponse struct {
	Result *struct {
		Value *TokenAmount `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// AccountInfoResponse is the response from getAccountInfo (base64 encoding).
type AccountInfoResponse struct {
	Result struct {
		Value *AccountInfo `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// AccountInfo is the account portion of a getAccountInfo response.
type AccountInfo struct {
	Lamports uint64   `json:"lamports"`
	Owner    string   `json:"owner"`
	Data     []string `json:"data"` // [base64 payload, "base64"]
}
