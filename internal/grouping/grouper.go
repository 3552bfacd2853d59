package grouping

import (
	"solana-wallet-watch/internal/domain"
)

// DefaultWindowSeconds is the gap above which consecutive same-mint swaps
// stop being one trade. A single real-world trade often lands as several
// ledger-level transfers within seconds.
const DefaultWindowSeconds int64 = 120

// GroupEvents clusters an oldest-first event sequence into Groups. A new
// Group starts when the mint changes or when the gap to the previous event
// exceeds windowSeconds; a gap of exactly windowSeconds still merges.
func GroupEvents(events []domain.SwapEvent, windowSeconds int64) []domain.Group {
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}

	var groups []domain.Group
	var open *domain.Group

	for i := range events {
		e := events[i]
		if open == nil || e.Mint != open.Mint || e.Timestamp-open.LastTime > windowSeconds {
			if open != nil {
				groups = append(groups, *open)
			}
			open = &domain.Group{
				Account:   e.Account,
				Mint:      e.Mint,
				FirstTime: e.Timestamp,
				LastTime:  e.Timestamp,
			}
		}
		appendEvent(open, e)
	}

	if open != nil {
		groups = append(groups, *open)
	}
	return groups
}

// appendEvent adds one event to the open group and extends its totals.
func appendEvent(g *domain.Group, e domain.SwapEvent) {
	g.Signatures = append(g.Signatures, e.Signature)
	if e.Timestamp > g.LastTime {
		g.LastTime = e.Timestamp
	}
	if e.Timestamp < g.FirstTime {
		g.FirstTime = e.Timestamp
	}

	if e.IsBuy() {
		g.Buys = append(g.Buys, e)
		g.TotalBuyTokenAmount += e.TokenAmount
		g.TotalBuyNativeAmount += e.NativeAmount
	} else {
		g.Sells = append(g.Sells, e)
		g.TotalSellTokenAmount += e.TokenAmount
		g.TotalSellNativeAmount += e.NativeAmount
	}
}
