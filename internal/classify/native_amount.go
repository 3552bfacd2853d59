package classify

import (
	"regexp"
	"strconv"

	"solana-wallet-watch/internal/domain"
)

// nativeNoiseFloorSOL separates swap proceeds from fee and rent transfers.
const nativeNoiseFloorSOL = 0.001

// descriptionAmountPattern pulls a SOL amount out of description text like
// "sold 1000000 BONK for 2.5 SOL".
var descriptionAmountPattern = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*SOL`)

// amountStrategy is one way to locate the real SOL proceeds of a sell.
// Upstream data sources disagree on where proceeds appear versus fee and
// rent transfers, so strategies are tried in a fixed priority order.
type amountStrategy struct {
	name    string
	extract func(tx *domain.RawTransaction, account string, netNative float64) (float64, bool)
}

var sellAmountStrategies = []amountStrategy{
	{name: "protocol_swap", extract: extractProtocolSwapOutput},
	{name: "inner_transfers", extract: extractInnerInbound},
	{name: "description", extract: extractDescriptionAmount},
	{name: "inbound_sum", extract: extractInboundAboveNoise},
	{name: "largest_inbound", extract: extractLargestInbound},
	{name: "net_delta", extract: extractNetDelta},
}

// sellNativeAmount resolves the SOL proceeds of a sell by trying each
// strategy in priority order until one yields a positive amount.
func sellNativeAmount(tx *domain.RawTransaction, account string, netNative float64) float64 {
	for _, s := range sellAmountStrategies {
		if amount, ok := s.extract(tx, account, netNative); ok && amount > 0 {
			return amount
		}
	}
	return 0
}

// buyNativeAmount resolves the SOL spent on a buy: protocol-level input
// when present, otherwise the net native outflow.
func buyNativeAmount(tx *domain.RawTransaction, netNative float64) float64 {
	if tx.Swap != nil && tx.Swap.NativeInputLamports > 0 {
		return domain.SOL(tx.Swap.NativeInputLamports)
	}
	if netNative < 0 {
		return -netNative
	}
	return netNative
}

// extractProtocolSwapOutput reads the amount the protocol-level swap
// metadata reports, summing routed inner swaps when the top-level output
// is absent.
func extractProtocolSwapOutput(tx *domain.RawTransaction, _ string, _ float64) (float64, bool) {
	if tx.Swap == nil {
		return 0, false
	}
	if tx.Swap.NativeOutputLamports > 0 {
		return domain.SOL(tx.Swap.NativeOutputLamports), true
	}
	var total int64
	for _, inner := range tx.Swap.InnerSwaps {
		total += inner.NativeOutputLamports
	}
	if total > 0 {
		return domain.SOL(total), true
	}
	return 0, false
}

// extractInnerInbound sums SOL reaching the account through inner
// instructions.
func extractInnerInbound(tx *domain.RawTransaction, account string, _ float64) (float64, bool) {
	var total int64
	for _, it := range tx.InnerTransfers {
		if it.ToAddress == account {
			total += it.Lamports
		}
	}
	if total > 0 {
		return domain.SOL(total), true
	}
	return 0, false
}

// extractDescriptionAmount parses a SOL amount out of the description.
func extractDescriptionAmount(tx *domain.RawTransaction, _ string, _ float64) (float64, bool) {
	m := descriptionAmountPattern.FindStringSubmatch(tx.Description)
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

// extractInboundAboveNoise sums top-level inbound SOL transfers above the
// noise floor.
func extractInboundAboveNoise(tx *domain.RawTransaction, account string, _ float64) (float64, bool) {
	var total float64
	for _, nt := range tx.NativeTransfers {
		if nt.ToAddress != account {
			continue
		}
		if sol := domain.SOL(nt.Lamports); sol > nativeNoiseFloorSOL {
			total += sol
		}
	}
	if total > 0 {
		return total, true
	}
	return 0, false
}

// extractLargestInbound falls back to the single biggest inbound transfer,
// noise floor ignored.
func extractLargestInbound(tx *domain.RawTransaction, account string, _ float64) (float64, bool) {
	var largest int64
	for _, nt := range tx.NativeTransfers {
		if nt.ToAddress == account && nt.Lamports > largest {
			largest = nt.Lamports
		}
	}
	if largest > 0 {
		return domain.SOL(largest), true
	}
	return 0, false
}

// extractNetDelta is the last resort: the magnitude of the raw net native
// balance change.
func extractNetDelta(_ *domain.RawTransaction, _ string, netNative float64) (float64, bool) {
	if netNative < 0 {
		return -netNative, true
	}
	if netNative > 0 {
		return netNative, true
	}
	return 0, false
}
