package domain

// Alert is the payload handed to the notification sink once a group clears
// the alert decision. Rendering and delivery belong to the sink.
type Alert struct {
	ID           string // uuid
	Account      string // watched account address
	AccountLabel string // display label, may be empty
	Mint         string
	TokenName    string // from metadata, may be empty
	TokenSymbol  string // from metadata, may be empty
	Kind         string // "buy" | "sell" | "mixed"

	// Group totals
	TotalBuyTokenAmount   float64
	TotalSellTokenAmount  float64
	TotalBuyNativeAmount  float64
	TotalSellNativeAmount float64

	// Market context at alert time
	TokenPriceUSD float64 // 0 when price lookup missed
	MarketCapUSD  float64 // 0 when metadata lookup missed

	// Realized PnL for the sell side (FIFO-matched)
	PnLNative         float64
	PnLPercent        float64
	PnLPercentDefined bool // false when matched cost basis was zero
	CumulativePnL     float64

	// Position outcome
	CompleteExit bool

	// Deviation signals, advisory
	LowMarketCap      bool
	VeryLowMarketCap  bool
	FastestFlipSecs   int64 // 0 when no instant flip detected
	FlipNativePnL     float64
	InstantFlipCount  int

	Signatures []string
	FirstTime  int64 // Unix timestamp in seconds
	LastTime   int64 // Unix timestamp in seconds
	CreatedAt  int64 // Unix timestamp in seconds
}

// Alert kind constants
const (
	AlertKindBuy   = "buy"
	AlertKindSell  = "sell"
	AlertKindMixed = "mixed"
)
