package helius

import (
	"math"
	"strconv"

	"solana-wallet-watch/internal/domain"
)

// wrappedSOLMint identifies WSOL legs inside routed swaps.
const wrappedSOLMint = "So11111111111111111111111111111111111111112"

// enhancedTransaction is one parsed transaction from the enhanced
// transactions API.
type enhancedTransaction struct {
	Description      string           `json:"description"`
	Type             string           `json:"type"`
	Source           string           `json:"source"`
	Fee              int64            `json:"fee"`
	FeePayer         string           `json:"feePayer"`
	Signature        string           `json:"signature"`
	Slot             int64            `json:"slot"`
	Timestamp        int64            `json:"timestamp"`
	NativeTransfers  []nativeTransfer `json:"nativeTransfers"`
	TokenTransfers   []tokenTransfer  `json:"tokenTransfers"`
	TransactionError *txError         `json:"transactionError"`
	Events           txEvents         `json:"events"`
}

// nativeTransfer is a SOL transfer between accounts.
type nativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}

// tokenTransfer is a token transfer between accounts.
type tokenTransfer struct {
	FromUserAccount  string  `json:"fromUserAccount"`
	ToUserAccount    string  `json:"toUserAccount"`
	FromTokenAccount string  `json:"fromTokenAccount"`
	ToTokenAccount   string  `json:"toTokenAccount"`
	TokenAmount      float64 `json:"tokenAmount"`
	Mint             string  `json:"mint"`
}

type txError struct {
	Error string `json:"error"`
}

// txEvents holds the structured event data parsed by the API.
type txEvents struct {
	Swap *swapEvent `json:"swap"`
}

// swapEvent is the protocol-level swap parsed from the transaction.
type swapEvent struct {
	NativeInput  *nativeAmount `json:"nativeInput"`
	NativeOutput *nativeAmount `json:"nativeOutput"`
	InnerSwaps   []innerSwap   `json:"innerSwaps"`
}

// nativeAmount is a native SOL amount tied to an account.
type nativeAmount struct {
	Account string `json:"account"`
	Amount  string `json:"amount"` // lamports as string
}

// innerSwap is a single hop within a routed swap. Native legs appear as
// WSOL token transfers.
type innerSwap struct {
	TokenInputs  []tokenTransfer `json:"tokenInputs"`
	TokenOutputs []tokenTransfer `json:"tokenOutputs"`
}

// toDomain reduces the wire transaction to the fields the pipeline reads.
func (t *enhancedTransaction) toDomain() *domain.RawTransaction {
	out := &domain.RawTransaction{
		Signature:   t.Signature,
		Timestamp:   t.Timestamp,
		Description: t.Description,
		Failed:      t.TransactionError != nil,
	}

	for _, nt := range t.NativeTransfers {
		out.NativeTransfers = append(out.NativeTransfers, domain.NativeTransfer{
			FromAddress: nt.FromUserAccount,
			ToAddress:   nt.ToUserAccount,
			Lamports:    nt.Amount,
		})
	}
	for _, tt := range t.TokenTransfers {
		out.TokenTransfers = append(out.TokenTransfers, domain.TokenTransfer{
			FromAddress: tt.FromUserAccount,
			ToAddress:   tt.ToUserAccount,
			Mint:        tt.Mint,
			Amount:      tt.TokenAmount,
		})
	}

	swap := t.Events.Swap
	if swap == nil {
		return out
	}

	meta := &domain.SwapMetadata{
		NativeInputLamports:  parseLamports(swap.NativeInput),
		NativeOutputLamports: parseLamports(swap.NativeOutput),
	}
	for _, inner := range swap.InnerSwaps {
		leg := domain.InnerSwap{}
		for _, in := range inner.TokenInputs {
			if in.Mint == wrappedSOLMint {
				leg.NativeInputLamports += uiToLamports(in.TokenAmount)
			}
		}
		for _, o := range inner.TokenOutputs {
			if o.Mint != wrappedSOLMint {
				continue
			}
			leg.NativeOutputLamports += uiToLamports(o.TokenAmount)
			// WSOL hops are SOL moving through inner instructions; surface
			// them so downstream can see SOL credited to the account.
			out.InnerTransfers = append(out.InnerTransfers, domain.NativeTransfer{
				FromAddress: o.FromUserAccount,
				ToAddress:   o.ToUserAccount,
				Lamports:    uiToLamports(o.TokenAmount),
			})
		}
		meta.InnerSwaps = append(meta.InnerSwaps, leg)
	}
	out.Swap = meta
	return out
}

// parseLamports reads a string lamport amount from the swap event.
func parseLamports(a *nativeAmount) int64 {
	if a == nil {
		return 0
	}
	v, _ := strconv.ParseInt(a.Amount, 10, 64)
	return v
}

// uiToLamports converts a UI WSOL amount back to lamports.
func uiToLamports(sol float64) int64 {
	return int64(math.Round(sol * domain.LamportsPerSOL))
}
