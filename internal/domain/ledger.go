package domain

// LedgerEntry is the running position for one (account, mint) pair.
// Corresponds to ledger_entries table in PostgreSQL. Created on the first
// swap seen for the key and never deleted: a full exit leaves Balance near
// zero but the buy-side accumulators persist for later re-entries.
type LedgerEntry struct {
	Account           string  // watched account address
	Mint              string  // token mint address
	Balance           float64 // running signed sum of applied token amounts
	CostBasis         float64 // lifetime SOL spent on buys, never decremented
	TotalTokensBought float64 // lifetime tokens bought, never decremented
	TotalTokensSold   float64 // lifetime tokens sold
	FirstBuySignature string  // signature of the first buy ever applied
	FirstBuyAt        int64   // Unix timestamp of the first buy (seconds)
	UpdatedAt         int64   // Unix timestamp of last mutation (seconds)
}

// DisplayBalance clamps small negative balances (upstream rounding) to zero.
func (e *LedgerEntry) DisplayBalance() float64 {
	if e.Balance < 0 {
		return 0
	}
	return e.Balance
}

// AverageCostPerToken derives an average cost when FIFO detail is
// unavailable. Returns 0 when nothing was ever bought.
func (e *LedgerEntry) AverageCostPerToken() float64 {
	if e.TotalTokensBought <= 0 {
		return 0
	}
	return e.CostBasis / e.TotalTokensBought
}

// LedgerDelta is one swap's effect on a ledger entry, passed to
// LedgerStore.Apply. TokenDelta is signed: positive for buys, negative
// for sells.
type LedgerDelta struct {
	Signature    string
	Timestamp    int64   // Unix timestamp in seconds
	TokenDelta   float64 // signed token amount
	NativeAmount float64 // SOL magnitude of the swap leg
	Price        float64 // token price in USD at classification, 0 if unknown
	IsBuy        bool
}
