// Package custodial derives custodial balance accounts and builds the
// instruction pairs that move tokens out of them. Balance accounts belong to
// an on-chain program and are addressed by the user's Ethereum wallet;
// transfers are authorized by a secp256k1 signature from that wallet, checked
// on-chain against the native secp256k1 program.
package custodial

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/gagliardetto/solana-go"
)

var ProgramID = solana.MustPublicKeyFromBase58(constants.CustodialProgramID)

const ethAddressLen = 20

// ParseEthAddress decodes a 0x-prefixed or bare hex Ethereum address.
func ParseEthAddress(addr string) ([ethAddressLen]byte, error) {
	var out [ethAddressLen]byte

	s := strings.TrimPrefix(strings.TrimSpace(addr), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid ethereum address %q: %w", addr, err)
	}
	if len(raw) != ethAddressLen {
		return out, fmt.Errorf("invalid ethereum address %q: expected %d bytes, got %d", addr, ethAddressLen, len(raw))
	}

	copy(out[:], raw)
	return out, nil
}

// DeriveAuthority derives the program's signing authority for a mint. Every
// balance account for that mint is owned by this authority.
func DeriveAuthority(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{mint.Bytes()},
		ProgramID,
	)
}

// DeriveBalanceAccount derives the custodial token account for an Ethereum
// wallet and mint. The account address is created with the hex wallet address
// as seed, so it is recoverable from the wallet alone.
func DeriveBalanceAccount(ethWallet string, mint solana.PublicKey) (solana.PublicKey, error) {
	ethAddr, err := ParseEthAddress(ethWallet)
	if err != nil {
		return solana.PublicKey{}, err
	}

	authority, _, err := DeriveAuthority(mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive authority: %w", err)
	}

	seed := hex.EncodeToString(ethAddr[:])
	account, err := solana.CreateWithSeed(authority, seed, solana.TokenProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive balance account: %w", err)
	}
	return account, nil
}

// DeriveNonceAccount derives the per-wallet transfer nonce account. The
// program bumps the stored nonce on every transfer to stop replays.
func DeriveNonceAccount(ethWallet string) (solana.PublicKey, uint8, error) {
	ethAddr, err := ParseEthAddress(ethWallet)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}

	return solana.FindProgramAddress(
		[][]byte{
			[]byte("nonce"),
			ethAddr[:],
		},
		ProgramID,
	)
}
