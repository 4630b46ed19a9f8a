package custodial

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// KeyServiceSigner asks the wallet key service to authorize a transfer. The
// service holds the custody keys and signs the 48-byte transfer message with
// the key behind the given ethereum wallet.
type KeyServiceSigner struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewKeyServiceSigner(baseURL, apiKey string) *KeyServiceSigner {
	return &KeyServiceSigner{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type signRequest struct {
	Wallet  string `json:"wallet"`
	Message string `json:"message"` // hex
}

type signResponse struct {
	Signature  string `json:"signature"` // hex, 64 bytes
	RecoveryID byte   `json:"recoveryId"`
}

func (s *KeyServiceSigner) SignTransfer(ctx context.Context, ethWallet string, message []byte) ([64]byte, byte, error) {
	var sig [64]byte

	body, err := json.Marshal(signRequest{
		Wallet:  ethWallet,
		Message: hex.EncodeToString(message),
	})
	if err != nil {
		return sig, 0, fmt.Errorf("failed to encode sign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/v1/sign-transfer", bytes.NewReader(body))
	if err != nil {
		return sig, 0, fmt.Errorf("failed to create sign request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		httpReq.Header.Set("X-API-Key", s.APIKey)
	}

	resp, err := s.HTTP.Do(httpReq)
	if err != nil {
		return sig, 0, fmt.Errorf("key service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return sig, 0, fmt.Errorf("failed to read key service response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return sig, 0, fmt.Errorf("key service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out signResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return sig, 0, fmt.Errorf("failed to decode key service response: %w", err)
	}

	raw, err := hex.DecodeString(out.Signature)
	if err != nil {
		return sig, 0, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(raw) != 64 {
		return sig, 0, fmt.Errorf("expected 64-byte signature, got %d bytes", len(raw))
	}
	copy(sig[:], raw)

	return sig, out.RecoveryID, nil
}
