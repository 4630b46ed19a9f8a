package custodial

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Transfer instruction index in the custodial program.
const transferInstructionIndex = 2

// EncodeTransferMessage builds the byte message the Ethereum wallet signs to
// authorize one transfer: destination key, raw amount, then the wallet's
// current transfer nonce. The on-chain program rebuilds the same bytes and
// checks them against the secp256k1 verification instruction.
func EncodeTransferMessage(destination solana.PublicKey, amount uint64, nonce uint64) []byte {
	msg := make([]byte, 32+8+8)
	copy(msg[0:32], destination.Bytes())
	binary.LittleEndian.PutUint64(msg[32:40], amount)
	binary.LittleEndian.PutUint64(msg[40:48], nonce)
	return msg
}

// NewSecpVerifyIx builds a native secp256k1 program instruction verifying
// that message was signed by the wallet behind ethAddr. All offsets point
// into this instruction's own data (instruction index 0xff per the secp
// program convention is not used; same-instruction offsets use the current
// index, which the program resolves via the instructions sysvar).
//
// Data layout:
//
//	u8  signature count (always 1)
//	u16 signature offset     u8 signature instruction index
//	u16 eth address offset   u8 eth address instruction index
//	u16 message offset       u16 message size   u8 message instruction index
//	[20] eth address
//	[64] signature
//	u8  recovery id
//	[..] message
func NewSecpVerifyIx(ethAddr [ethAddressLen]byte, signature [64]byte, recoveryID byte, message []byte) solana.Instruction {
	const headerLen = 1 + 11
	ethOffset := uint16(headerLen)
	sigOffset := ethOffset + ethAddressLen
	msgOffset := sigOffset + 64 + 1

	data := make([]byte, 0, int(msgOffset)+len(message))
	data = append(data, 1) // one signature

	var off [11]byte
	binary.LittleEndian.PutUint16(off[0:2], sigOffset)
	off[2] = 0 // signature lives in this instruction
	binary.LittleEndian.PutUint16(off[3:5], ethOffset)
	off[5] = 0
	binary.LittleEndian.PutUint16(off[6:8], msgOffset)
	binary.LittleEndian.PutUint16(off[8:10], uint16(len(message)))
	off[10] = 0
	data = append(data, off[:]...)

	data = append(data, ethAddr[:]...)
	data = append(data, signature[:]...)
	data = append(data, recoveryID)
	data = append(data, message...)

	// The secp program reads no accounts; everything is in the data.
	return solana.NewInstruction(solana.Secp256k1ProgramID, nil, data)
}

// NewTransferIx builds the custodial program transfer instruction. It must be
// placed directly after its matching secp256k1 verification instruction in
// the same transaction.
//
// Account order:
// 0. payer (signer, writable)
// 1. source balance account (writable)
// 2. destination token account (writable)
// 3. nonce account (writable)
// 4. mint authority (read-only)
// 5. rent sysvar
// 6. instructions sysvar
// 7. system program
// 8. token program
func NewTransferIx(
	payer solana.PublicKey,
	source solana.PublicKey,
	destination solana.PublicKey,
	nonceAccount solana.PublicKey,
	authority solana.PublicKey,
	ethAddr [ethAddressLen]byte,
) solana.Instruction {
	data := make([]byte, 1+ethAddressLen)
	data[0] = transferInstructionIndex
	copy(data[1:], ethAddr[:])

	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: source, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: nonceAccount, IsSigner: false, IsWritable: true},
		{PublicKey: authority, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarInstructionsPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(ProgramID, accounts, data)
}
