package swap

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/amplifihq/coinswap/internal/constants"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var poolPrograms = map[solana.PublicKey]struct{}{
	solana.MustPublicKeyFromBase58(constants.BondingCurveProgramID): {},
	solana.MustPublicKeyFromBase58(constants.MigratedAMMProgramID):  {},
}

// splicePoolInstruction deserializes a relay-built transaction and lifts out
// the pool program instruction so it can be resubmitted inside our own
// transaction. The relay's compute budget and account setup are discarded;
// we rebuild those ourselves. A transaction without a recognizable pool
// instruction is fatal: submitting it unmodified would bypass our account
// staging.
func (e *Engine) splicePoolInstruction(ctx context.Context, txBase64 string) (solana.Instruction, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid relay transaction encoding: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize relay transaction: %w", err)
	}
	msg := tx.Message

	keys, err := e.resolveMessageKeys(ctx, &msg)
	if err != nil {
		return nil, err
	}

	for _, compiled := range msg.Instructions {
		// Program IDs always live in the static key section.
		if int(compiled.ProgramIDIndex) >= len(msg.AccountKeys) {
			continue
		}
		programID := msg.AccountKeys[compiled.ProgramIDIndex]
		if _, ok := poolPrograms[programID]; !ok {
			continue
		}

		accounts := make([]*solana.AccountMeta, 0, len(compiled.Accounts))
		for _, idx := range compiled.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("relay transaction references account %d of %d", idx, len(keys))
			}
			meta := keys[idx]
			accounts = append(accounts, &solana.AccountMeta{
				PublicKey:  meta.key,
				IsSigner:   meta.signer,
				IsWritable: meta.writable,
			})
		}

		return solana.NewInstruction(programID, accounts, []byte(compiled.Data)), nil
	}

	return nil, fmt.Errorf("relay transaction contains no pool program instruction")
}

type resolvedKey struct {
	key      solana.PublicKey
	signer   bool
	writable bool
}

// resolveMessageKeys expands a message's account list: static keys with
// signer/writable flags from the header, then lookup-table keys, writable
// sections first, resolved against the on-chain tables.
func (e *Engine) resolveMessageKeys(ctx context.Context, msg *solana.Message) ([]resolvedKey, error) {
	numStatic := len(msg.AccountKeys)
	numSigners := int(msg.Header.NumRequiredSignatures)
	numReadonlySigned := int(msg.Header.NumReadonlySignedAccounts)
	numReadonlyUnsigned := int(msg.Header.NumReadonlyUnsignedAccounts)

	keys := make([]resolvedKey, 0, numStatic)
	for i, key := range msg.AccountKeys {
		signer := i < numSigners
		var writable bool
		if signer {
			writable = i < numSigners-numReadonlySigned
		} else {
			writable = i < numStatic-numReadonlyUnsigned
		}
		keys = append(keys, resolvedKey{key: key, signer: signer, writable: writable})
	}

	if len(msg.AddressTableLookups) == 0 {
		return keys, nil
	}

	tables := make(map[solana.PublicKey][]solana.PublicKey, len(msg.AddressTableLookups))
	for _, lookup := range msg.AddressTableLookups {
		if _, ok := tables[lookup.AccountKey]; ok {
			continue
		}
		addrs, err := e.wallet.GetAddressLookupTable(ctx, lookup.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve lookup table %s: %w", lookup.AccountKey, err)
		}
		tables[lookup.AccountKey] = addrs
	}

	pick := func(table solana.PublicKey, idx uint8) (solana.PublicKey, error) {
		addrs := tables[table]
		if int(idx) >= len(addrs) {
			return solana.PublicKey{}, fmt.Errorf("lookup table %s has no entry %d", table, idx)
		}
		return addrs[idx], nil
	}

	// Loaded keys follow the static section: every table's writable entries
	// first, then every table's readonly entries.
	for _, lookup := range msg.AddressTableLookups {
		for _, idx := range lookup.WritableIndexes {
			key, err := pick(lookup.AccountKey, idx)
			if err != nil {
				return nil, err
			}
			keys = append(keys, resolvedKey{key: key, writable: true})
		}
	}
	for _, lookup := range msg.AddressTableLookups {
		for _, idx := range lookup.ReadonlyIndexes {
			key, err := pick(lookup.AccountKey, idx)
			if err != nil {
				return nil, err
			}
			keys = append(keys, resolvedKey{key: key})
		}
	}

	return keys, nil
}
