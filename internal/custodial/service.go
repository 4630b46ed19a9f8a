package custodial

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/amplifihq/coinswap/internal/relay"
	"github.com/amplifihq/coinswap/internal/spl"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Signer produces the secp256k1 authorization for a transfer message with the
// key behind the given ethereum wallet. Backed by the wallet key service in
// production; tests use a fixed-signature fake.
type Signer interface {
	SignTransfer(ctx context.Context, ethWallet string, message []byte) (signature [64]byte, recoveryID byte, err error)
}

// AccountDataReader reads raw account data, nil when the account is absent.
type AccountDataReader interface {
	GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
}

// Service builds custodial transfer instruction sequences and resolves
// balance accounts through the relay.
type Service struct {
	signer Signer
	reader AccountDataReader
	relay  *relay.Client
	logger *logrus.Entry
}

func NewService(signer Signer, reader AccountDataReader, relayClient *relay.Client, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		signer: signer,
		reader: reader,
		relay:  relayClient,
		logger: logger.WithField("component", "custodial"),
	}
}

// GetOrCreateBalanceAccount resolves the custodial balance account for a
// wallet and mint, asking the relay to create it on-chain when missing. The
// derived address is authoritative; the relay result is checked against it.
func (s *Service) GetOrCreateBalanceAccount(ctx context.Context, ethWallet string, mint solana.PublicKey) (solana.PublicKey, error) {
	derived, err := DeriveBalanceAccount(ethWallet, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	if s.relay == nil {
		return derived, nil
	}

	resp, err := s.relay.CreateBalanceAccount(ctx, relay.BalanceAccountRequest{
		Mint:           mint.String(),
		EthereumWallet: ethWallet,
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to create balance account: %w", err)
	}

	if resp.Account != derived.String() {
		return solana.PublicKey{}, fmt.Errorf("balance account mismatch: derived %s, relay returned %s", derived, resp.Account)
	}
	if resp.Created {
		s.logger.WithFields(logrus.Fields{
			"account": resp.Account,
			"mint":    mint.String(),
		}).Info("created custodial balance account")
	}

	return derived, nil
}

// CurrentNonce reads the wallet's transfer nonce. A missing nonce account
// means no transfer has happened yet, so the nonce is zero.
func (s *Service) CurrentNonce(ctx context.Context, ethWallet string) (uint64, error) {
	nonceAccount, _, err := DeriveNonceAccount(ethWallet)
	if err != nil {
		return 0, err
	}

	data, err := s.reader.GetAccountData(ctx, nonceAccount)
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce account: %w", err)
	}
	if data == nil {
		return 0, nil
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("nonce account %s data too short: %d bytes", nonceAccount, len(data))
	}

	return binary.LittleEndian.Uint64(data[:8]), nil
}

// TransferParams describes one move out of a custodial balance.
type TransferParams struct {
	EthWallet   string
	Mint        solana.PublicKey
	Amount      uint64
	Destination solana.PublicKey

	// Payer funds the nonce account bump.
	Payer solana.PublicKey

	// Optional memo appended after the transfer, signed by MemoSigner.
	Memo       string
	MemoSigner solana.PublicKey
}

// TransferInstructions builds the authorization and transfer pair for one
// custodial move. The two instructions must stay adjacent and ordered.
func (s *Service) TransferInstructions(ctx context.Context, p TransferParams) ([]solana.Instruction, error) {
	if p.Amount == 0 {
		return nil, fmt.Errorf("transfer amount is zero")
	}
	if p.Destination.IsZero() {
		return nil, fmt.Errorf("transfer destination is zero")
	}

	ethAddr, err := ParseEthAddress(p.EthWallet)
	if err != nil {
		return nil, err
	}

	source, err := DeriveBalanceAccount(p.EthWallet, p.Mint)
	if err != nil {
		return nil, err
	}
	nonceAccount, _, err := DeriveNonceAccount(p.EthWallet)
	if err != nil {
		return nil, err
	}
	authority, _, err := DeriveAuthority(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive authority: %w", err)
	}

	nonce, err := s.CurrentNonce(ctx, p.EthWallet)
	if err != nil {
		return nil, err
	}

	message := EncodeTransferMessage(p.Destination, p.Amount, nonce)
	signature, recoveryID, err := s.signer.SignTransfer(ctx, p.EthWallet, message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transfer: %w", err)
	}

	instructions := []solana.Instruction{
		NewSecpVerifyIx(ethAddr, signature, recoveryID, message),
		NewTransferIx(p.Payer, source, p.Destination, nonceAccount, authority, ethAddr),
	}

	if p.Memo != "" {
		instructions = append(instructions, spl.NewMemoIx(p.Memo, p.MemoSigner))
	}

	return instructions, nil
}
