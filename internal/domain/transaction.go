package domain

// RawTransaction is one enhanced transaction as returned by the transaction
// source, reduced to the fields the pipeline reads. Immutable once fetched.
type RawTransaction struct {
	Signature        string           // transaction signature
	Timestamp        int64            // Unix timestamp in seconds
	Description      string           // human-readable summary (may be empty)
	Failed           bool             // transaction-level error flag
	NativeTransfers  []NativeTransfer // top-level SOL transfers
	TokenTransfers   []TokenTransfer  // SPL token transfers
	Swap             *SwapMetadata    // protocol-level swap event (nullable)
	InnerTransfers   []NativeTransfer // SOL transfers from inner instructions
}

// NativeTransfer is one SOL movement between two addresses.
type NativeTransfer struct {
	FromAddress string
	ToAddress   string
	Lamports    int64 // amount in lamports
}

// TokenTransfer is one SPL token movement between two addresses.
type TokenTransfer struct {
	FromAddress string
	ToAddress   string
	Mint        string  // token mint address
	Amount      float64 // UI token amount (decimals applied upstream)
}

// SwapMetadata is protocol-level swap data attached by the enhanced
// transaction API when it recognizes the DEX instruction.
type SwapMetadata struct {
	NativeInputLamports  int64       // SOL paid into the swap
	NativeOutputLamports int64       // SOL received from the swap
	InnerSwaps           []InnerSwap // nested swaps for routed trades
}

// InnerSwap is one leg of a routed swap.
type InnerSwap struct {
	NativeInputLamports  int64
	NativeOutputLamports int64
}

// LamportsPerSOL converts between lamports and SOL.
const LamportsPerSOL = 1_000_000_000

// SOL converts a lamport amount to SOL.
func SOL(lamports int64) float64 {
	return float64(lamports) / LamportsPerSOL
}

// BalanceDelta is the net effect of one transaction on one watched account:
// a single signed native delta and one signed delta per touched mint.
type BalanceDelta struct {
	NativeDelta float64      // SOL, negative = outflow
	TokenDeltas []TokenDelta // mints from the deny-list excluded
}

// TokenDelta is a signed per-mint balance change.
type TokenDelta struct {
	Mint  string
	Delta float64 // UI token amount, negative = outflow
}
