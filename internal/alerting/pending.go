package alerting

import (
	"sort"
	"sync"
	"time"

	"solana-wallet-watch/internal/domain"
)

// DefaultHoldDuration delays pure-buy alerts so that a fast round-trip
// collapses into one mixed alert instead of two.
const DefaultHoldDuration = 60 * time.Second

type pendingKey struct {
	account    string
	mint       string
	groupStart int64
}

type pendingEntry struct {
	alert   *domain.Alert
	readyAt time.Time
	sigs    map[string]bool
}

// PendingBuffer holds pure-buy alerts for a grace period. Sells arriving
// for the same (account, mint) while an entry is pending are merged into
// it. Process-local; entries lost on restart cost one delayed alert, not
// data.
type PendingBuffer struct {
	mu      sync.Mutex
	entries map[pendingKey]*pendingEntry
	hold    time.Duration
	now     func() time.Time
}

// NewPendingBuffer creates a buffer. hold <= 0 uses DefaultHoldDuration.
func NewPendingBuffer(hold time.Duration) *PendingBuffer {
	if hold <= 0 {
		hold = DefaultHoldDuration
	}
	return &PendingBuffer{
		entries: make(map[pendingKey]*pendingEntry),
		hold:    hold,
		now:     time.Now,
	}
}

// Enqueue holds a pure-buy alert until its hold elapses. Re-enqueueing the
// same group replaces the entry and restarts the hold.
func (b *PendingBuffer) Enqueue(alert *domain.Alert, groupStart int64) {
	key := pendingKey{account: alert.Account, mint: alert.Mint, groupStart: groupStart}

	sigs := make(map[string]bool, len(alert.Signatures))
	for _, sig := range alert.Signatures {
		sigs[sig] = true
	}

	b.mu.Lock()
	b.entries[key] = &pendingEntry{
		alert:   alert,
		readyAt: b.now().Add(b.hold),
		sigs:    sigs,
	}
	b.mu.Unlock()
}

// AbsorbSell merges sell activity into the most recent pending entry for
// (account, mint). Returns false when nothing is pending, in which case
// the caller emits a standalone alert. Signatures already absorbed are
// skipped; merge runs only when at least one signature is new, after the
// new signatures have been appended to the alert.
func (b *PendingBuffer) AbsorbSell(account, mint string, signatures []string, merge func(*domain.Alert)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry := b.latest(account, mint)
	if entry == nil {
		return false
	}

	var fresh []string
	for _, sig := range signatures {
		if !entry.sigs[sig] {
			fresh = append(fresh, sig)
		}
	}
	if len(fresh) == 0 {
		return true
	}

	for _, sig := range fresh {
		entry.sigs[sig] = true
		entry.alert.Signatures = append(entry.alert.Signatures, sig)
	}
	if merge != nil {
		merge(entry.alert)
	}
	return true
}

// latest picks the pending entry with the newest group start. Callers hold
// the lock.
func (b *PendingBuffer) latest(account, mint string) *pendingEntry {
	var best *pendingEntry
	bestStart := int64(-1)
	for key, entry := range b.entries {
		if key.account == account && key.mint == mint && key.groupStart > bestStart {
			best = entry
			bestStart = key.groupStart
		}
	}
	return best
}

// Flush removes and returns every alert whose hold has elapsed, oldest
// first.
func (b *PendingBuffer) Flush() []*domain.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	var due []*domain.Alert
	for key, entry := range b.entries {
		if !entry.readyAt.After(now) {
			due = append(due, entry.alert)
			delete(b.entries, key)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].FirstTime < due[j].FirstTime
	})
	return due
}

// FlushAll removes and returns every alert regardless of hold, oldest
// first. Used on shutdown so parked alerts are emitted instead of lost.
func (b *PendingBuffer) FlushAll() []*domain.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := make([]*domain.Alert, 0, len(b.entries))
	for key, entry := range b.entries {
		all = append(all, entry.alert)
		delete(b.entries, key)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].FirstTime < all[j].FirstTime
	})
	return all
}

// Len reports how many alerts are pending.
func (b *PendingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
