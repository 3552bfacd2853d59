package domain

// AccountStats is the analyzer's rolling baseline over an account's
// historical buys. Recomputed from the swap archive and updated
// incrementally as new buys are recorded.
type AccountStats struct {
	Account         string
	BuyCount        int
	AvgMarketCap    float64 // mean market cap at buy, USD
	MedianMarketCap float64
	MinMarketCap    float64
	P25MarketCap    float64
	P75MarketCap    float64
	AvgBuyNative    float64 // mean SOL spent per buy
	ComputedAt      int64   // Unix timestamp in seconds
}

// ArchivedSwap is one classified swap enriched with market context at
// classification time. Append-only; corresponds to swap_archive table in
// ClickHouse and feeds the analyzer baseline.
type ArchivedSwap struct {
	Signature     string
	Timestamp     int64 // Unix timestamp in seconds
	Account       string
	Mint          string
	Side          string  // "buy" | "sell"
	TokenAmount   float64 // UI token amount
	NativeAmount  float64 // SOL
	TokenPriceUSD float64 // 0 when price lookup missed
	MarketCapUSD  float64 // 0 when metadata lookup missed
}
