package constants

import "time"

// Platform token (the mandatory intermediary for artist-coin pairs).
const (
	PlatformTokenMint     = "9LzCMqDgTKYz9Drzqnpgee3SGa89up3a247ypMj2xrqM"
	PlatformTokenDecimals = 8
)

// Base (non-artist) token mints. Pairs drawn entirely from this set are
// directly routable through the general aggregator.
const (
	WSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// BaseMints is the fixed non-artist-coin set used by the route classifier.
var BaseMints = []string{
	PlatformTokenMint,
	WSOLMint,
	USDCMint,
	USDTMint,
}

// Artist coins are minted with a fixed precision.
const ArtistCoinDecimals = 9

// On-chain programs recognized by the transaction builder.
const (
	// Bonding-curve AMM (pre-migration pools).
	BondingCurveProgramID = "dbcij3LWUppWqq96dh6gJWwBifmcGfLSB5D4DuSMaqN"
	// Standard AMM the curve graduates into after migration.
	MigratedAMMProgramID = "cpamdpZCGKUy5JxQXB4dcpGPiikHawvSWAd6mEn1sGG"

	MemoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

	// Custodial balance program. Balance accounts are derived from the user's
	// Ethereum wallet address and transfers are authorized by a secp256k1
	// signature from that wallet.
	CustodialProgramID = "Ewkv3JahEFRKkcJmpoKB7pXbnUHwjAyXiwEo4ZY2rezQ"
)

// SwapLookupTableAddress is the platform-wide address lookup table appended
// to every swap transaction.
const SwapLookupTableAddress = "2WB87JxGZieRd7hi3y87wq6HAsPLyb9zrSx8B5z1QEzM"

// InternalTransferMemo tags USDC moves out of custodial balances so the
// payments indexer ignores them.
const InternalTransferMemo = "internal-transfer"

// Quote limits.
const (
	DefaultSlippageBps = 50
	// Bounds transaction size when the aggregator picks a route.
	MaxQuoteAccounts = 64
	// UI amounts above this are clamped before quoting. Well above any real
	// balance; exists to keep the aggregator from rejecting the request.
	MaxSafeQuoteAmountUI = 1_000_000_000_000
)

// Redis keys.
const (
	RedisKeyRecentSwaps   = "swaps:recent"
	RedisKeyBalancePrefix = "swap:balance:"
	RedisKeyCoinPrefix    = "swap:coin:"
	RedisKeyFlags         = "swap:flags"
)

// Redis Pub/Sub channels.
const (
	PubSubChannelSwaps = "swaps:executed"
)

// Limits.
const (
	MaxRecentSwaps = 100
)

// Confirmation.
const (
	ConfirmCommitment = "confirmed"
	ConfirmTimeout    = 60 * time.Second
)
