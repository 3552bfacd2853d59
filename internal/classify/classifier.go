package classify

import (
	"strings"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/normalize"
)

// Classification thresholds. Token deltas below TokenEpsilon and native
// deltas below NativeEpsilon carry no signal.
const (
	TokenEpsilon  = 1e-6
	NativeEpsilon = 1e-3

	// A negative token delta larger than this is a genuine sell even when
	// the native delta is also negative (fee/wrapping noise).
	largeOutflowThreshold = 1000.0
)

// sellKeywords mark a description as describing a disposal.
var sellKeywords = []string{"sold", "sell", "swapped", "swap"}

// ruleInput is everything one rule may inspect.
type ruleInput struct {
	tx      *domain.RawTransaction
	account string
	delta   *domain.BalanceDelta
}

// rule is one classification heuristic. Returns nil when it does not match.
type rule struct {
	name  string
	apply func(in ruleInput) *domain.SwapEvent
}

// Classifier turns normalized balance deltas into at most one SwapEvent per
// transaction. Rules are evaluated in order; the first match wins.
type Classifier struct {
	rules []rule
}

// New creates a Classifier with the standard rule order.
func New() *Classifier {
	return &Classifier{
		rules: []rule{
			{name: "direct_swap", apply: classifyDirectSwap},
			{name: "large_token_outflow", apply: classifyLargeTokenOutflow},
			{name: "description_sell", apply: classifyDescriptionSell},
			{name: "native_only", apply: classifyNativeOnly},
		},
	}
}

// Classify evaluates the rules against one transaction's deltas. Returns
// the event and the name of the matching rule, or (nil, "") when no rule
// matched (an ambiguous non-swap, not an error).
func (c *Classifier) Classify(tx *domain.RawTransaction, account string, delta *domain.BalanceDelta) (*domain.SwapEvent, string) {
	if tx == nil || delta == nil {
		return nil, ""
	}

	in := ruleInput{tx: tx, account: account, delta: delta}
	for _, r := range c.rules {
		if event := r.apply(in); event != nil {
			if event.Side == "" {
				// Diagnostic-only match, e.g. native_only
				return nil, r.name
			}
			event.Signature = tx.Signature
			event.Timestamp = tx.Timestamp
			event.Account = account
			return event, r.name
		}
	}
	return nil, ""
}

// significantTokenDeltas filters deltas above the token threshold.
func significantTokenDeltas(delta *domain.BalanceDelta) []domain.TokenDelta {
	var out []domain.TokenDelta
	for _, td := range delta.TokenDeltas {
		if td.Delta > TokenEpsilon || td.Delta < -TokenEpsilon {
			out = append(out, td)
		}
	}
	return out
}

// classifyDirectSwap handles the clean case: exactly one significant token
// delta paired with a significant native delta in the opposite direction.
func classifyDirectSwap(in ruleInput) *domain.SwapEvent {
	tds := significantTokenDeltas(in.delta)
	if len(tds) != 1 {
		return nil
	}
	td := tds[0]
	native := in.delta.NativeDelta

	switch {
	case native < -NativeEpsilon && td.Delta > TokenEpsilon:
		return &domain.SwapEvent{
			Side:         domain.SwapSideBuy,
			Mint:         td.Mint,
			TokenAmount:  td.Delta,
			NativeAmount: buyNativeAmount(in.tx, native),
		}
	case native > NativeEpsilon && td.Delta < -TokenEpsilon:
		return &domain.SwapEvent{
			Side:         domain.SwapSideSell,
			Mint:         td.Mint,
			TokenAmount:  -td.Delta,
			NativeAmount: sellNativeAmount(in.tx, in.account, native),
		}
	}
	return nil
}

// classifyLargeTokenOutflow handles sells where the native delta is also
// negative: a token outflow beyond the threshold cannot be fee noise.
func classifyLargeTokenOutflow(in ruleInput) *domain.SwapEvent {
	tds := significantTokenDeltas(in.delta)
	if len(tds) != 1 {
		return nil
	}
	td := tds[0]
	native := in.delta.NativeDelta

	if native < -NativeEpsilon && td.Delta < 0 && -td.Delta > largeOutflowThreshold {
		return &domain.SwapEvent{
			Side:         domain.SwapSideSell,
			Mint:         td.Mint,
			TokenAmount:  -td.Delta,
			NativeAmount: sellNativeAmount(in.tx, in.account, native),
		}
	}
	return nil
}

// classifyDescriptionSell falls back to the description text when the
// numeric signal is unclear but an outbound token transfer exists.
func classifyDescriptionSell(in ruleInput) *domain.SwapEvent {
	desc := strings.ToLower(in.tx.Description)
	if desc == "" {
		return nil
	}

	matched := false
	for _, kw := range sellKeywords {
		if strings.Contains(desc, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	for _, tt := range in.tx.TokenTransfers {
		if tt.FromAddress != in.account || tt.Mint == "" || tt.Amount <= TokenEpsilon {
			continue
		}
		if normalize.IsDenied(tt.Mint) {
			continue
		}
		return &domain.SwapEvent{
			Side:         domain.SwapSideSell,
			Mint:         tt.Mint,
			TokenAmount:  tt.Amount,
			NativeAmount: sellNativeAmount(in.tx, in.account, in.delta.NativeDelta),
		}
	}
	return nil
}

// classifyNativeOnly matches pure SOL movements so they are counted as
// non-swaps instead of falling through unrecorded. Emits no event.
func classifyNativeOnly(in ruleInput) *domain.SwapEvent {
	if len(significantTokenDeltas(in.delta)) != 0 {
		return nil
	}
	if in.delta.NativeDelta > NativeEpsilon || in.delta.NativeDelta < -NativeEpsilon {
		return &domain.SwapEvent{}
	}
	return nil
}
