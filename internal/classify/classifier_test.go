package classify

import (
	"math"
	"testing"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/normalize"
)

const acct = "WatchedAcct11111111111111111111111111111111"

func classifyTx(t *testing.T, tx *domain.RawTransaction) (*domain.SwapEvent, string) {
	t.Helper()
	d := normalize.Deltas(tx, acct)
	if d == nil {
		t.Fatal("Normalizer produced no deltas")
	}
	return New().Classify(tx, acct, d)
}

func TestClassify_DirectBuy(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature: "sig1",
		Timestamp: 1700000000,
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: acct, ToAddress: "pool", Lamports: 2_000_000_000},
		},
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: "pool", ToAddress: acct, Mint: "mintA", Amount: 1_000_000},
		},
	}

	event, rule := classifyTx(t, tx)
	if event == nil {
		t.Fatal("Expected a swap event")
	}
	if rule != "direct_swap" {
		t.Errorf("Expected direct_swap rule, got %s", rule)
	}
	if event.Side != domain.SwapSideBuy {
		t.Errorf("Expected buy, got %s", event.Side)
	}
	if event.TokenAmount != 1_000_000 {
		t.Errorf("Expected token amount 1000000, got %f", event.TokenAmount)
	}
	if math.Abs(event.NativeAmount-2.0) > 1e-9 {
		t.Errorf("Expected native amount 2.0, got %f", event.NativeAmount)
	}
	if event.Account != acct || event.Signature != "sig1" {
		t.Errorf("Event identity not filled: %+v", event)
	}
}

func TestClassify_DirectSell(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature: "sig2",
		Timestamp: 1700000010,
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: "pool", ToAddress: acct, Lamports: 2_500_000_000},
		},
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: acct, ToAddress: "pool", Mint: "mintA", Amount: 1_000_000},
		},
	}

	event, _ := classifyTx(t, tx)
	if event == nil {
		t.Fatal("Expected a swap event")
	}
	if event.Side != domain.SwapSideSell {
		t.Errorf("Expected sell, got %s", event.Side)
	}
	if math.Abs(event.NativeAmount-2.5) > 1e-9 {
		t.Errorf("Expected native amount 2.5, got %f", event.NativeAmount)
	}
}

func TestClassify_LargeTokenOutflowIsSell(t *testing.T) {
	// Native delta negative (fee/wrapping noise) but token outflow large.
	tx := &domain.RawTransaction{
		Signature: "sig3",
		Timestamp: 1700000020,
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: acct, ToAddress: "fees", Lamports: 5_000_000},
		},
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: acct, ToAddress: "pool", Mint: "mintA", Amount: 50_000},
		},
	}

	event, rule := classifyTx(t, tx)
	if event == nil {
		t.Fatal("Expected a swap event")
	}
	if rule != "large_token_outflow" {
		t.Errorf("Expected large_token_outflow rule, got %s", rule)
	}
	if event.Side != domain.SwapSideSell {
		t.Errorf("Expected sell, got %s", event.Side)
	}
}

func TestClassify_SmallTokenOutflowAmbiguous(t *testing.T) {
	// Both deltas negative but token outflow under the threshold: no rule.
	tx := &domain.RawTransaction{
		Signature: "sig4",
		Timestamp: 1700000030,
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: acct, ToAddress: "fees", Lamports: 5_000_000},
		},
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: acct, ToAddress: "somewhere", Mint: "mintA", Amount: 500},
		},
	}

	event, rule := classifyTx(t, tx)
	if event != nil {
		t.Fatalf("Expected no event, got %+v", event)
	}
	if rule != "" {
		t.Errorf("Expected no rule match, got %s", rule)
	}
}

func TestClassify_DescriptionSell(t *testing.T) {
	// No clean native signal: inflow below the native epsilon.
	tx := &domain.RawTransaction{
		Signature:   "sig5",
		Timestamp:   1700000040,
		Description: "WatchedAcct swapped 800 mintA for 1.75 SOL",
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: acct, ToAddress: "pool", Mint: "mintA", Amount: 800},
		},
	}

	event, rule := classifyTx(t, tx)
	if event == nil {
		t.Fatal("Expected a swap event")
	}
	if rule != "description_sell" {
		t.Errorf("Expected description_sell rule, got %s", rule)
	}
	if event.Side != domain.SwapSideSell {
		t.Errorf("Expected sell, got %s", event.Side)
	}
	if math.Abs(event.NativeAmount-1.75) > 1e-9 {
		t.Errorf("Expected native amount parsed from description 1.75, got %f", event.NativeAmount)
	}
}

func TestClassify_NativeOnlyNoEvent(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature: "sig6",
		Timestamp: 1700000050,
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: "friend", ToAddress: acct, Lamports: 1_000_000_000},
		},
	}

	event, rule := classifyTx(t, tx)
	if event != nil {
		t.Fatalf("Pure SOL transfer must not produce a swap, got %+v", event)
	}
	if rule != "native_only" {
		t.Errorf("Expected native_only diagnostic, got %q", rule)
	}
}

func TestClassify_TokenToTokenAmbiguous(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature: "sig7",
		Timestamp: 1700000060,
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: acct, ToAddress: "pool", Mint: "mintA", Amount: 100},
			{FromAddress: "pool", ToAddress: acct, Mint: "mintB", Amount: 5000},
		},
	}

	event, rule := classifyTx(t, tx)
	if event != nil || rule != "" {
		t.Errorf("Token-to-token swap should be ambiguous, got event=%v rule=%q", event, rule)
	}
}

func TestSellAmount_ProtocolBeatsNetDelta(t *testing.T) {
	// Protocol metadata reports 2.5 SOL while raw transfers say 2.0.
	tx := &domain.RawTransaction{
		Signature: "sig8",
		Timestamp: 1700000070,
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: "pool", ToAddress: acct, Lamports: 2_000_000_000},
		},
		TokenTransfers: []domain.TokenTransfer{
			{FromAddress: acct, ToAddress: "pool", Mint: "mintA", Amount: 10_000},
		},
		Swap: &domain.SwapMetadata{NativeOutputLamports: 2_500_000_000},
	}

	event, _ := classifyTx(t, tx)
	if event == nil {
		t.Fatal("Expected a swap event")
	}
	if math.Abs(event.NativeAmount-2.5) > 1e-9 {
		t.Errorf("Protocol-level amount must win: expected 2.5, got %f", event.NativeAmount)
	}
}

func TestSellAmount_InnerSwapsSummed(t *testing.T) {
	tx := &domain.RawTransaction{
		Swap: &domain.SwapMetadata{
			InnerSwaps: []domain.InnerSwap{
				{NativeOutputLamports: 1_000_000_000},
				{NativeOutputLamports: 500_000_000},
			},
		},
	}

	amount, ok := extractProtocolSwapOutput(tx, acct, 0)
	if !ok {
		t.Fatal("Expected inner swaps to resolve an amount")
	}
	if math.Abs(amount-1.5) > 1e-9 {
		t.Errorf("Expected summed inner outputs 1.5, got %f", amount)
	}
}

func TestSellAmount_InboundSumBeatsLargest(t *testing.T) {
	// Two inbound transfers above the noise floor: the sum wins over the
	// single largest.
	tx := &domain.RawTransaction{
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: "pool", ToAddress: acct, Lamports: 1_500_000_000},
			{FromAddress: "pool", ToAddress: acct, Lamports: 1_000_000_000},
			{FromAddress: "rent", ToAddress: acct, Lamports: 500_000}, // below noise floor
		},
	}

	amount := sellNativeAmount(tx, acct, 2.5005)
	if math.Abs(amount-2.5) > 1e-9 {
		t.Errorf("Expected noise-filtered sum 2.5, got %f", amount)
	}
}

func TestSellAmount_LargestInboundWhenAllBelowNoise(t *testing.T) {
	tx := &domain.RawTransaction{
		NativeTransfers: []domain.NativeTransfer{
			{FromAddress: "a", ToAddress: acct, Lamports: 900_000},
			{FromAddress: "b", ToAddress: acct, Lamports: 400_000},
		},
	}

	amount := sellNativeAmount(tx, acct, 0.0013)
	if math.Abs(amount-0.0009) > 1e-9 {
		t.Errorf("Expected largest single inbound 0.0009, got %f", amount)
	}
}

func TestSellAmount_NetDeltaLastResort(t *testing.T) {
	tx := &domain.RawTransaction{}

	amount := sellNativeAmount(tx, acct, -0.42)
	if math.Abs(amount-0.42) > 1e-9 {
		t.Errorf("Expected |net delta| 0.42, got %f", amount)
	}
}

func TestBuyAmount_ProtocolInputPreferred(t *testing.T) {
	tx := &domain.RawTransaction{
		Swap: &domain.SwapMetadata{NativeInputLamports: 3_000_000_000},
	}

	amount := buyNativeAmount(tx, -2.9)
	if math.Abs(amount-3.0) > 1e-9 {
		t.Errorf("Expected protocol input 3.0, got %f", amount)
	}
}
