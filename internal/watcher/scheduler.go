package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/observability"
	"solana-wallet-watch/internal/storage"
)

const (
	// DefaultPollInterval is how often every watched account is polled.
	DefaultPollInterval = 30 * time.Second

	// DefaultSweepInterval is how often the delay buffer is flushed.
	// It must stay below the hold duration or parked alerts overstay.
	DefaultSweepInterval = 15 * time.Second

	// DefaultConcurrency bounds simultaneous account passes. Each pass
	// holds an upstream HTTP request, so this also caps fetch pressure.
	DefaultConcurrency = 4
)

// SchedulerOptions contains configuration for creating a Scheduler.
type SchedulerOptions struct {
	Watcher  *Watcher
	Accounts storage.AccountStore

	PollInterval  time.Duration // default DefaultPollInterval
	SweepInterval time.Duration // default DefaultSweepInterval
	Concurrency   int           // default DefaultConcurrency

	// Nudges delivers account addresses with fresh on-chain activity,
	// typically from the websocket listener. Optional. A nudged account
	// is polled ahead of its next tick; polling remains the source of
	// truth, so a lost nudge costs latency, never data.
	Nudges <-chan string
}

// Scheduler drives the engine: a poll ticker runs a pass over every
// watched account, a sweep ticker flushes the delay buffer, and nudges
// pull individual accounts forward.
type Scheduler struct {
	watcher  *Watcher
	accounts storage.AccountStore

	pollInterval  time.Duration
	sweepInterval time.Duration
	nudges        <-chan string

	sem      *semaphore.Weighted
	inflight sync.Map // account address -> struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Scheduler{
		watcher:       opts.Watcher,
		accounts:      opts.Accounts,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		nudges:        opts.Nudges,
		sem:           semaphore.NewWeighted(int64(concurrency)),
	}
}

// Run starts the scheduler loop and blocks until the context is
// cancelled. On shutdown it waits for in-flight passes and drains the
// delay buffer so parked alerts still go out.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Dur("poll_interval", s.pollInterval).
		Dur("sweep_interval", s.sweepInterval).
		Msg("scheduler started")

	s.pollAll(ctx)

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.drain()
			log.Info().Msg("scheduler stopped")
			return ctx.Err()

		case <-pollTicker.C:
			s.pollAll(ctx)

		case <-sweepTicker.C:
			s.sweep(ctx)

		case address, ok := <-s.nudges:
			if !ok {
				// Listener gone; fall back to pure polling.
				s.nudges = nil
				continue
			}
			observability.RecordNudge()
			s.pollOne(ctx, address)
		}
	}
}

// pollAll dispatches a pass for every watched account.
func (s *Scheduler) pollAll(ctx context.Context) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing watched accounts failed")
		return
	}
	observability.UpdateWatchedAccounts(len(accounts))
	for _, account := range accounts {
		s.dispatch(ctx, account)
	}
}

// pollOne dispatches a pass for a nudged account if it is still watched.
// Nudges for unwatched accounts are dropped; a mentions subscription can
// briefly outlive removal.
func (s *Scheduler) pollOne(ctx context.Context, address string) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing watched accounts failed")
		return
	}
	for _, account := range accounts {
		if account.Address == address {
			s.dispatch(ctx, account)
			return
		}
	}
}

// dispatch runs one pass in the background, bounded by the concurrency
// semaphore. At most one pass per account runs at a time; an account
// already in flight is skipped, not queued, since its running pass will
// pick up the same transactions.
func (s *Scheduler) dispatch(ctx context.Context, account *domain.WatchedAccount) {
	if _, loaded := s.inflight.LoadOrStore(account.Address, struct{}{}); loaded {
		return
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.inflight.Delete(account.Address)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		defer s.inflight.Delete(account.Address)

		start := time.Now()
		result, err := s.watcher.ProcessOnce(ctx, account)
		if err != nil {
			observability.RecordPass("error", time.Since(start).Seconds())
			observability.RecordFetchError()
			log.Error().Err(err).Str("account", account.Address).Msg("pass aborted")
			return
		}

		status := "ok"
		if len(result.Errors) > 0 {
			status = "partial"
			log.Warn().
				Str("account", account.Address).
				Strs("errors", result.Errors).
				Msg("pass finished with errors")
		} else {
			observability.MarkPassSuccess(time.Now().Unix())
		}
		observability.RecordPass(status, time.Since(start).Seconds())
		observability.RecordPassCounts(result.Fetched, result.Swaps, result.Groups)
		observability.RecordPassErrors(len(result.Errors))
		observability.RecordAlertFlow(result.Emitted, result.Queued, result.Absorbed)
		observability.UpdatePendingAlerts(s.watcher.PendingCount())
		if result.Swaps > 0 || result.Emitted > 0 || result.Queued > 0 || result.Absorbed > 0 {
			log.Info().
				Str("account", account.Address).
				Int("transactions", result.NewTransactions).
				Int("swaps", result.Swaps).
				Int("groups", result.Groups).
				Int("emitted", result.Emitted).
				Int("queued", result.Queued).
				Int("absorbed", result.Absorbed).
				Msg("pass complete")
		}
	}()
}

// sweep flushes due alerts out of the delay buffer.
func (s *Scheduler) sweep(ctx context.Context) {
	result := s.watcher.SweepPending(ctx)
	if result.Emitted > 0 {
		log.Info().Int("emitted", result.Emitted).Msg("delay buffer flushed")
	}
	for _, e := range result.Errors {
		log.Warn().Str("error", e).Msg("sweep error")
	}
	observability.RecordAlertFlow(result.Emitted, 0, 0)
	observability.UpdatePendingAlerts(s.watcher.PendingCount())
}

// drain empties the delay buffer on shutdown under a fresh context, since
// the loop's context is already cancelled.
func (s *Scheduler) drain() {
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := s.watcher.DrainPending(drainCtx)
	if result.Emitted > 0 {
		log.Info().Int("emitted", result.Emitted).Msg("delay buffer drained on shutdown")
	}
}
