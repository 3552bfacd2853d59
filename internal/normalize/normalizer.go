package normalize

import (
	"sort"

	"solana-wallet-watch/internal/domain"
)

// Mints excluded from swap detection. The wrapped native asset and major
// stablecoins appear as the paying leg of a swap, not its subject.
var denyListMints = map[string]bool{
	"So11111111111111111111111111111111111111112": true, // wrapped SOL
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
}

// tokenDustEpsilon drops per-mint deltas that net to nothing, e.g. tokens
// passing through the account within one transaction.
const tokenDustEpsilon = 1e-6

// IsDenied reports whether a mint is excluded from swap detection.
func IsDenied(mint string) bool {
	return denyListMints[mint]
}

// Deltas reduces one transaction to its net balance effect on the watched
// account: a single signed native delta plus one signed delta per touched
// mint, deny-listed mints excluded. Returns nil when no transfer in the
// transaction involves the account. Pure function.
func Deltas(tx *domain.RawTransaction, account string) *domain.BalanceDelta {
	if tx == nil || account == "" {
		return nil
	}

	touched := false
	var nativeDelta int64

	for _, nt := range tx.NativeTransfers {
		if nt.FromAddress == account {
			nativeDelta -= nt.Lamports
			touched = true
		}
		if nt.ToAddress == account {
			nativeDelta += nt.Lamports
			touched = true
		}
	}

	tokenDeltas := make(map[string]float64)
	for _, tt := range tx.TokenTransfers {
		if denyListMints[tt.Mint] || tt.Mint == "" {
			continue
		}
		if tt.FromAddress == account {
			tokenDeltas[tt.Mint] -= tt.Amount
			touched = true
		}
		if tt.ToAddress == account {
			tokenDeltas[tt.Mint] += tt.Amount
			touched = true
		}
	}

	if !touched {
		return nil
	}

	out := &domain.BalanceDelta{NativeDelta: domain.SOL(nativeDelta)}
	for mint, delta := range tokenDeltas {
		if delta > -tokenDustEpsilon && delta < tokenDustEpsilon {
			continue
		}
		out.TokenDeltas = append(out.TokenDeltas, domain.TokenDelta{Mint: mint, Delta: delta})
	}

	// Stable order for deterministic downstream behavior
	sort.Slice(out.TokenDeltas, func(i, j int) bool {
		return out.TokenDeltas[i].Mint < out.TokenDeltas[j].Mint
	})

	return out
}
