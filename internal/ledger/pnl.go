package ledger

import (
	"errors"

	"solana-wallet-watch/internal/domain"
)

// ErrSignatureNotFound marks a PnL request whose target sell is not in the
// supplied history.
var ErrSignatureNotFound = errors.New("sell signature not found in history")

// PnLResult is the FIFO-matched outcome of one sell.
type PnLResult struct {
	PnL              float64 // SellNativeAmount - MatchedCostBasis
	PnLPercent       float64 // meaningful only when PercentDefined
	PercentDefined   bool    // false when matched cost basis is zero
	MatchedCostBasis float64 // SOL cost of the consumed buy lots
	CumulativePnL    float64 // sum of per-sell PnL up to and including this sell
}

// buyLot is one unconsumed buy in the FIFO queue.
type buyLot struct {
	tokensRemaining    float64
	costBasisRemaining float64
}

// RealizedPnL replays the chronological (account, mint) swap history,
// FIFO-matching every sell against the oldest unconsumed buy lots, and
// returns the result for the sell identified by upToSignature. Earlier
// sells are replayed too so the queue is accurate when the target sell
// is reached.
func RealizedPnL(history []domain.SwapEvent, upToSignature string) (*PnLResult, error) {
	if upToSignature == "" {
		return nil, ErrSignatureNotFound
	}

	var lots []buyLot
	var cumulative float64

	for i := range history {
		e := &history[i]
		if e.IsBuy() {
			lots = append(lots, buyLot{
				tokensRemaining:    e.TokenAmount,
				costBasisRemaining: e.NativeAmount,
			})
			continue
		}
		if !e.IsSell() {
			continue
		}

		matched := consumeLots(&lots, e.TokenAmount)
		pnl := e.NativeAmount - matched
		cumulative += pnl

		if e.Signature == upToSignature {
			result := &PnLResult{
				PnL:              pnl,
				MatchedCostBasis: matched,
				CumulativePnL:    cumulative,
			}
			if matched > 0 {
				result.PnLPercent = pnl / matched * 100
				result.PercentDefined = true
			}
			return result, nil
		}
	}

	return nil, ErrSignatureNotFound
}

// consumeLots dequeues amount tokens from the oldest lots first, splitting
// a lot proportionally when it is larger than what remains to consume.
// Returns the cost basis of everything consumed.
func consumeLots(lots *[]buyLot, amount float64) float64 {
	var matched float64

	for amount > Epsilon && len(*lots) > 0 {
		lot := &(*lots)[0]
		if lot.tokensRemaining <= amount+Epsilon {
			matched += lot.costBasisRemaining
			amount -= lot.tokensRemaining
			*lots = (*lots)[1:]
			continue
		}

		fraction := amount / lot.tokensRemaining
		cost := lot.costBasisRemaining * fraction
		matched += cost
		lot.tokensRemaining -= amount
		lot.costBasisRemaining -= cost
		amount = 0
	}

	return matched
}
