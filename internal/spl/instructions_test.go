package spl

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAssociatedTokenAddressIsDeterministic(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	a, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	b, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestCreateATAIdempotentLayout(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ata, _, err := FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	ix := NewCreateAssociatedTokenAccountIdempotentIx(payer, ata, owner, mint)
	assert.Equal(t, AssociatedTokenProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.Equal(t, solana.TokenProgramID, accounts[5].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
}

func TestTokenTransferIxData(t *testing.T) {
	src := solana.NewWallet().PublicKey()
	dst := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	ix := NewTokenTransferIx(src, dst, owner, 123456789)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 9)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, uint64(123456789), binary.LittleEndian.Uint64(data[1:]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.True(t, accounts[2].IsSigner)
	assert.False(t, accounts[2].IsWritable)
}

func TestCloseAccountIxData(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	ix := NewTokenCloseAccountIx(account, dest, owner)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, data)

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, dest, accounts[1].PublicKey)
	assert.True(t, accounts[2].IsSigner)
}

func TestMemoIx(t *testing.T) {
	signer := solana.NewWallet().PublicKey()
	ix := NewMemoIx("internal-transfer", signer)

	assert.Equal(t, MemoProgramID, ix.ProgramID())
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, "internal-transfer", string(data))
}
