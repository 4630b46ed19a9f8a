package models

import "time"

// SwapExecutionRecord is the telemetry row written for every orchestrated
// swap, successful or not.
type SwapExecutionRecord struct {
	Signature         string    `json:"signature"`
	FirstLegSignature string    `json:"first_leg_signature,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	Owner             string    `json:"owner"`
	InputMint         string    `json:"input_mint"`
	OutputMint        string    `json:"output_mint"`
	InputAmount       float64   `json:"input_amount"`
	OutputAmount      float64   `json:"output_amount"`
	Route             string    `json:"route"` // "direct" or "indirect"
	Status            string    `json:"status"`
	Stage             string    `json:"stage,omitempty"`
	ErrorKind         string    `json:"error_kind,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	StrandedMint      string    `json:"stranded_mint,omitempty"`
	StrandedAmount    float64   `json:"stranded_amount,omitempty"`
	DurationMS        int64     `json:"duration_ms"`
}
