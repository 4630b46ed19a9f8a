// Package spl builds raw SPL Token, Associated Token Account and Memo program
// instructions. Layouts follow the on-chain programs; no program SDKs are
// involved.
package spl

import (
	"encoding/binary"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/gagliardetto/solana-go"
)

var (
	// SPL Associated Token Account program
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	MemoProgramID = solana.MustPublicKeyFromBase58(constants.MemoProgramID)
)

// FindAssociatedTokenAddress derives the ATA PDA for (owner, mint).
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) (ata solana.PublicKey, bump uint8, err error) {
	// Seeds: [owner, token_program, mint]
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			solana.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		AssociatedTokenProgramID,
	)
}

// NewCreateAssociatedTokenAccountIdempotentIx builds an ATA create instruction
// that is a no-op when the account already exists.
// Account order (ATA program):
// 0. payer (signer, writable)
// 1. ata (writable)
// 2. owner (read-only)
// 3. mint (read-only)
// 4. system_program
// 5. token_program
func NewCreateAssociatedTokenAccountIdempotentIx(
	payer solana.PublicKey,
	ata solana.PublicKey,
	owner solana.PublicKey,
	mint solana.PublicKey,
) solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}

	// ATA program instruction index 1 = CreateIdempotent
	return solana.NewInstruction(AssociatedTokenProgramID, accounts, []byte{1})
}

// NewTokenTransferIx builds a SPL Token Transfer instruction.
func NewTokenTransferIx(source, destination, owner solana.PublicKey, amount uint64) solana.Instruction {
	// TokenProgram instruction index 3 = Transfer, followed by u64 amount
	data := make([]byte, 1+8)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], amount)

	accounts := []*solana.AccountMeta{
		{PublicKey: source, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

// NewTokenCloseAccountIx builds a SPL Token CloseAccount instruction. The
// account's lamports go to destination.
func NewTokenCloseAccountIx(account, destination, owner solana.PublicKey) solana.Instruction {
	// TokenProgram instruction index 9 = CloseAccount
	data := []byte{9}
	accounts := []*solana.AccountMeta{
		{PublicKey: account, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

// NewTokenSyncNativeIx builds a SPL Token SyncNative instruction.
func NewTokenSyncNativeIx(nativeAccount solana.PublicKey) solana.Instruction {
	// TokenProgram instruction index 17 = SyncNative
	data := []byte{17}
	accounts := []*solana.AccountMeta{
		{PublicKey: nativeAccount, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(solana.TokenProgramID, accounts, data)
}

// NewSystemTransferIx builds a SystemProgram transfer instruction.
func NewSystemTransferIx(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	// SystemProgram instruction layout:
	// u32: instruction index (2 = Transfer)
	// u64: lamports
	data := make([]byte, 4+8)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	accounts := []*solana.AccountMeta{
		{PublicKey: from, IsSigner: true, IsWritable: true},
		{PublicKey: to, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(solana.SystemProgramID, accounts, data)
}

// NewMemoIx builds a Memo program instruction signed by the given account.
func NewMemoIx(memo string, signer solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: signer, IsSigner: true, IsWritable: false},
	}
	return solana.NewInstruction(MemoProgramID, accounts, []byte(memo))
}
