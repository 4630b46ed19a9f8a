package custodial

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEthWallet = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"

type fakeSigner struct {
	signedWallets  []string
	signedMessages [][]byte
}

func (f *fakeSigner) SignTransfer(_ context.Context, ethWallet string, message []byte) ([64]byte, byte, error) {
	f.signedWallets = append(f.signedWallets, ethWallet)
	f.signedMessages = append(f.signedMessages, message)
	var sig [64]byte
	for i := range sig {
		sig[i] = byte(i)
	}
	return sig, 1, nil
}

type fakeReader struct {
	accounts map[solana.PublicKey][]byte
}

func (f *fakeReader) GetAccountData(_ context.Context, pubkey solana.PublicKey) ([]byte, error) {
	return f.accounts[pubkey], nil
}

func TestParseEthAddress(t *testing.T) {
	addr, err := ParseEthAddress(testEthWallet)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7e), addr[0])
	assert.Equal(t, byte(0xdf), addr[19])

	bare, err := ParseEthAddress(testEthWallet[2:])
	require.NoError(t, err)
	assert.Equal(t, addr, bare)

	_, err = ParseEthAddress("0x1234")
	assert.ErrorContains(t, err, "expected 20 bytes")

	_, err = ParseEthAddress("0xzz5f4552091a69125d5dfcb7b8c2659029395bdf")
	assert.ErrorContains(t, err, "invalid ethereum address")
}

func TestDeriveBalanceAccountIsDeterministic(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58(constants.PlatformTokenMint)

	a, err := DeriveBalanceAccount(testEthWallet, mint)
	require.NoError(t, err)
	b, err := DeriveBalanceAccount(testEthWallet, mint)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := DeriveBalanceAccount(testEthWallet, solana.MustPublicKeyFromBase58(constants.USDCMint))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestEncodeTransferMessage(t *testing.T) {
	dest := solana.NewWallet().PublicKey()
	msg := EncodeTransferMessage(dest, 500, 7)

	require.Len(t, msg, 48)
	assert.Equal(t, dest.Bytes(), []byte(msg[:32]))
	assert.Equal(t, uint64(500), binary.LittleEndian.Uint64(msg[32:40]))
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(msg[40:48]))
}

func TestCurrentNonce(t *testing.T) {
	reader := &fakeReader{accounts: map[solana.PublicKey][]byte{}}
	svc := NewService(&fakeSigner{}, reader, nil, nil)

	// No nonce account yet.
	nonce, err := svc.CurrentNonce(context.Background(), testEthWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	nonceAccount, _, err := DeriveNonceAccount(testEthWallet)
	require.NoError(t, err)

	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, 42)
	reader.accounts[nonceAccount] = data

	nonce, err = svc.CurrentNonce(context.Background(), testEthWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), nonce)
}

func TestTransferInstructionsPair(t *testing.T) {
	signer := &fakeSigner{}
	svc := NewService(signer, &fakeReader{}, nil, nil)

	mint := solana.MustPublicKeyFromBase58(constants.PlatformTokenMint)
	dest := solana.NewWallet().PublicKey()
	payer := solana.NewWallet().PublicKey()

	ixs, err := svc.TransferInstructions(context.Background(), TransferParams{
		EthWallet:   testEthWallet,
		Mint:        mint,
		Amount:      1_0000_0000,
		Destination: dest,
		Payer:       payer,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 2)

	assert.Equal(t, solana.Secp256k1ProgramID, ixs[0].ProgramID())
	assert.Equal(t, ProgramID, ixs[1].ProgramID())

	// The signed message carries the destination and amount, signed with the
	// owner's key.
	require.Len(t, signer.signedMessages, 1)
	assert.Equal(t, []string{testEthWallet}, signer.signedWallets)
	assert.Equal(t, EncodeTransferMessage(dest, 1_0000_0000, 0), signer.signedMessages[0])

	// Transfer references the derived source and nonce accounts.
	source, err := DeriveBalanceAccount(testEthWallet, mint)
	require.NoError(t, err)
	nonceAccount, _, err := DeriveNonceAccount(testEthWallet)
	require.NoError(t, err)

	accounts := ixs[1].Accounts()
	require.Len(t, accounts, 9)
	assert.Equal(t, payer, accounts[0].PublicKey)
	assert.Equal(t, source, accounts[1].PublicKey)
	assert.Equal(t, dest, accounts[2].PublicKey)
	assert.Equal(t, nonceAccount, accounts[3].PublicKey)
}

func TestTransferInstructionsWithMemo(t *testing.T) {
	svc := NewService(&fakeSigner{}, &fakeReader{}, nil, nil)

	memoSigner := solana.NewWallet().PublicKey()
	ixs, err := svc.TransferInstructions(context.Background(), TransferParams{
		EthWallet:   testEthWallet,
		Mint:        solana.MustPublicKeyFromBase58(constants.USDCMint),
		Amount:      25_000000,
		Destination: solana.NewWallet().PublicKey(),
		Payer:       solana.NewWallet().PublicKey(),
		Memo:        constants.InternalTransferMemo,
		MemoSigner:  memoSigner,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 3)

	data, err := ixs[2].Data()
	require.NoError(t, err)
	assert.Equal(t, constants.InternalTransferMemo, string(data))
}

func TestTransferInstructionsValidation(t *testing.T) {
	svc := NewService(&fakeSigner{}, &fakeReader{}, nil, nil)

	_, err := svc.TransferInstructions(context.Background(), TransferParams{
		EthWallet:   testEthWallet,
		Mint:        solana.MustPublicKeyFromBase58(constants.USDCMint),
		Destination: solana.NewWallet().PublicKey(),
	})
	assert.ErrorContains(t, err, "amount is zero")

	_, err = svc.TransferInstructions(context.Background(), TransferParams{
		EthWallet: testEthWallet,
		Mint:      solana.MustPublicKeyFromBase58(constants.USDCMint),
		Amount:    1,
	})
	assert.ErrorContains(t, err, "destination is zero")
}

func TestSecpVerifyIxLayout(t *testing.T) {
	ethAddr, err := ParseEthAddress(testEthWallet)
	require.NoError(t, err)

	var sig [64]byte
	message := []byte("hello")
	ix := NewSecpVerifyIx(ethAddr, sig, 1, message)

	data, err := ix.Data()
	require.NoError(t, err)

	assert.Equal(t, byte(1), data[0]) // one signature
	ethOffset := binary.LittleEndian.Uint16(data[4:6])
	assert.Equal(t, ethAddr[:], data[ethOffset:ethOffset+20])
	msgOffset := binary.LittleEndian.Uint16(data[7:9])
	msgSize := binary.LittleEndian.Uint16(data[9:11])
	assert.Equal(t, message, data[msgOffset:int(msgOffset)+int(msgSize)])
}
