package analyze

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

const (
	// LowMarketCapFloorUSD flags any buy into a token below this market cap,
	// independent of the account's history.
	LowMarketCapFloorUSD = 50_000.0

	// VeryLowMarketCapUSD flags buys into tokens barely past launch.
	VeryLowMarketCapUSD = 10_000.0

	// InstantFlipWindowSeconds is the maximum buy-to-sell gap that counts
	// as a flip.
	InstantFlipWindowSeconds int64 = 60

	// DefaultSampleCap bounds the per-account baseline to the most recent
	// buys.
	DefaultSampleCap = 500
)

// Options configures an Analyzer.
type Options struct {
	// Archive rebuilds baselines from persisted buys. Optional; without it
	// RefreshBaseline is a no-op and baselines grow from live buys only.
	Archive storage.SwapArchiveStore

	// SampleCap bounds the per-account baseline. Defaults to DefaultSampleCap.
	SampleCap int
}

// accountSamples is the rolling buy baseline for one account. marketCaps
// holds only buys where the market cap was known; natives holds every buy.
type accountSamples struct {
	marketCaps []float64
	natives    []float64
}

// Analyzer keeps rolling per-account buy baselines and derives deviation
// flags for new activity.
type Analyzer struct {
	mu        sync.RWMutex
	samples   map[string]*accountSamples
	archive   storage.SwapArchiveStore
	sampleCap int
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	sampleCap := opts.SampleCap
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &Analyzer{
		samples:   make(map[string]*accountSamples),
		archive:   opts.Archive,
		sampleCap: sampleCap,
	}
}

// RefreshBaseline rebuilds each account's baseline from the swap archive,
// replacing whatever was accumulated live. Accounts whose archive read
// fails keep their previous baseline.
func (a *Analyzer) RefreshBaseline(ctx context.Context, accounts []string) error {
	if a.archive == nil {
		return nil
	}

	var firstErr error
	for _, account := range accounts {
		buys, err := a.archive.BuysByAccount(ctx, account, a.sampleCap)
		if err != nil {
			log.Warn().Err(err).Str("account", account).Msg("baseline refresh failed, keeping previous")
			if firstErr == nil {
				firstErr = fmt.Errorf("refresh baseline for %s: %w", account, err)
			}
			continue
		}

		s := &accountSamples{}
		for _, b := range buys {
			if b.MarketCapUSD > 0 {
				s.marketCaps = append(s.marketCaps, b.MarketCapUSD)
			}
			s.natives = append(s.natives, b.NativeAmount)
		}

		a.mu.Lock()
		a.samples[account] = s
		a.mu.Unlock()
	}
	return firstErr
}

// RecordBuy folds one live buy into the account's baseline. A zero or
// negative market cap means the lookup missed and is not sampled.
func (a *Analyzer) RecordBuy(account string, marketCapUSD, nativeAmount float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.samples[account]
	if s == nil {
		s = &accountSamples{}
		a.samples[account] = s
	}
	if marketCapUSD > 0 {
		s.marketCaps = appendBounded(s.marketCaps, marketCapUSD, a.sampleCap)
	}
	s.natives = appendBounded(s.natives, nativeAmount, a.sampleCap)
}

// appendBounded appends v and drops the oldest samples beyond limit.
func appendBounded(samples []float64, v float64, limit int) []float64 {
	samples = append(samples, v)
	if len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

// FlagMarketCap classifies a buy's market cap against the account's
// baseline. low is set below half the account's average or below the
// absolute floor; veryLow below the launchpad threshold. An unknown
// market cap (<= 0) yields no flags.
func (a *Analyzer) FlagMarketCap(account string, marketCapUSD float64) (low, veryLow bool) {
	if marketCapUSD <= 0 {
		return false, false
	}

	veryLow = marketCapUSD < VeryLowMarketCapUSD
	low = marketCapUSD < LowMarketCapFloorUSD
	if !low {
		if avg := a.averageMarketCap(account); avg > 0 && marketCapUSD < avg/2 {
			low = true
		}
	}
	return low, veryLow
}

func (a *Analyzer) averageMarketCap(account string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.samples[account]
	if s == nil {
		return 0
	}
	return mean(s.marketCaps)
}

// Stats snapshots the baseline distribution for an account.
func (a *Analyzer) Stats(account string) *domain.AccountStats {
	a.mu.RLock()
	s := a.samples[account]
	var caps, natives []float64
	if s != nil {
		caps = append(caps, s.marketCaps...)
		natives = append(natives, s.natives...)
	}
	a.mu.RUnlock()

	stats := &domain.AccountStats{
		Account:    account,
		BuyCount:   len(natives),
		ComputedAt: time.Now().Unix(),
	}
	if len(caps) > 0 {
		sorted := sortedCopy(caps)
		stats.AvgMarketCap = mean(caps)
		stats.MedianMarketCap = percentile(sorted, 0.50)
		stats.MinMarketCap = sorted[0]
		stats.P25MarketCap = percentile(sorted, 0.25)
		stats.P75MarketCap = percentile(sorted, 0.75)
	}
	if len(natives) > 0 {
		stats.AvgBuyNative = mean(natives)
	}
	return stats
}

// FlipReport summarizes instant flips inside one group.
type FlipReport struct {
	Count          int
	FastestSeconds int64
	TotalNativePnL float64 // sell proceeds minus matched buy spend, SOL
}

// InstantFlips finds sells that follow their nearest preceding buy within
// the flip window. Each sell is matched against at most one buy.
func InstantFlips(g *domain.Group) FlipReport {
	events := g.Events()
	var report FlipReport

	for i := range events {
		if !events[i].IsSell() {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if !events[j].IsBuy() {
				continue
			}
			gap := events[i].Timestamp - events[j].Timestamp
			if gap <= InstantFlipWindowSeconds {
				report.Count++
				report.TotalNativePnL += events[i].NativeAmount - events[j].NativeAmount
				if report.Count == 1 || gap < report.FastestSeconds {
					report.FastestSeconds = gap
				}
			}
			break
		}
	}
	return report
}
