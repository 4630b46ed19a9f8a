package server

// ErrorResponse is the JSON error envelope used by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"` // dev mode only
}

// HealthResponse is the health check body.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// SwapExecuteRequest is the POST /v1/swap body.
type SwapExecuteRequest struct {
	Owner      string  `json:"owner"`
	InputMint  string  `json:"inputMint"`
	OutputMint string  `json:"outputMint"`
	AmountUI   float64 `json:"amountUi"`
	// Zero means the default tolerance.
	SlippageBps uint16 `json:"slippageBps"`

	CustodialSource      bool `json:"custodialSource"`
	CustodialDestination bool `json:"custodialDestination"`
}

// FlagUpsertRequest creates or updates a runtime flag.
type FlagUpsertRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// FlagUpdateRequest updates an existing runtime flag.
type FlagUpdateRequest struct {
	Value bool `json:"value"`
}

// AIAskRequest is a natural language query over the execution telemetry.
type AIAskRequest struct {
	Question string `json:"question"`
	Model    string `json:"model"` // optional model override
}

// AIAskResponse carries the generated SQL and the summarised answer.
type AIAskResponse struct {
	SQL    string `json:"sql"`
	Answer string `json:"answer"`
	TookMs int64  `json:"took_ms"`
}
