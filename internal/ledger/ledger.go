package ledger

// Epsilon is the token balance below which a position counts as empty.
// Upstream amounts are floats, so a full exit rarely lands on exactly zero.
const Epsilon = 1e-6

// NegativeTolerance is how far below zero a balance may drift on upstream
// rounding before it counts as a ledger inconsistency.
const NegativeTolerance = 1.0

// CompleteExit reports whether applying a sell emptied the position: the
// balance was above Epsilon before and at or below it after.
func CompleteExit(balanceBefore, balanceAfter float64) bool {
	return balanceBefore > Epsilon && balanceAfter <= Epsilon
}

// Inconsistent reports whether a post-apply balance is meaningfully
// negative. Slightly negative balances are expected rounding debris and
// are clamped for display, not flagged.
func Inconsistent(balance float64) bool {
	return balance < -NegativeTolerance
}
