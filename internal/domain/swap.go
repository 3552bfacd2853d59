package domain

// SwapEvent is one classified swap by a watched account. At most one is
// produced per RawTransaction. Amounts are positive magnitudes; direction
// is carried only in Side.
type SwapEvent struct {
	Signature    string  // transaction signature
	Timestamp    int64   // Unix timestamp in seconds
	Account      string  // watched account address
	Side         string  // "buy" | "sell"
	Mint         string  // token mint address
	TokenAmount  float64 // UI token amount, > 0
	NativeAmount float64 // SOL, > 0
}

// Swap side constants
const (
	SwapSideBuy  = "buy"
	SwapSideSell = "sell"
)

// IsBuy reports whether the event is a buy.
func (e *SwapEvent) IsBuy() bool { return e.Side == SwapSideBuy }

// IsSell reports whether the event is a sell.
func (e *SwapEvent) IsSell() bool { return e.Side == SwapSideSell }
