package domain

// Group is one or more temporally adjacent swaps of the same mint by one
// account, merged into a single reportable event. All members share Mint;
// consecutive member timestamps differ by at most the grouping window.
type Group struct {
	Account    string      // watched account address
	Mint       string      // token mint address
	FirstTime  int64       // Unix timestamp of earliest member (seconds)
	LastTime   int64       // Unix timestamp of latest member (seconds)
	Signatures []string    // member signatures in chronological order
	Buys       []SwapEvent // buy-side members, chronological
	Sells      []SwapEvent // sell-side members, chronological

	TotalBuyTokenAmount   float64
	TotalSellTokenAmount  float64
	TotalBuyNativeAmount  float64
	TotalSellNativeAmount float64
}

// Kind classifies the group as pure-buy, pure-sell, or mixed.
func (g *Group) Kind() string {
	switch {
	case len(g.Buys) > 0 && len(g.Sells) > 0:
		return AlertKindMixed
	case len(g.Sells) > 0:
		return AlertKindSell
	default:
		return AlertKindBuy
	}
}

// Events returns all members merged back into chronological order.
func (g *Group) Events() []SwapEvent {
	out := make([]SwapEvent, 0, len(g.Buys)+len(g.Sells))
	i, j := 0, 0
	for i < len(g.Buys) && j < len(g.Sells) {
		if g.Buys[i].Timestamp <= g.Sells[j].Timestamp {
			out = append(out, g.Buys[i])
			i++
		} else {
			out = append(out, g.Sells[j])
			j++
		}
	}
	out = append(out, g.Buys[i:]...)
	out = append(out, g.Sells[j:]...)
	return out
}
