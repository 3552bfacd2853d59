package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
type LedgerStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.LedgerEntry // keyed by account|mint
	history map[string][]domain.SwapEvent  // keyed by account|mint
	applied map[string]struct{}            // keyed by account|mint|signature
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries: make(map[string]*domain.LedgerEntry),
		history: make(map[string][]domain.SwapEvent),
		applied: make(map[string]struct{}),
	}
}

// ledgerKey generates a unique key for an (account, mint) pair.
func ledgerKey(account, mint string) string {
	return fmt.Sprintf("%s|%s", account, mint)
}

// Get retrieves the ledger entry for (account, mint).
func (s *LedgerStore) Get(_ context.Context, account, mint string) (*domain.LedgerEntry, error) {
	if account == "" || mint == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[ledgerKey(account, mint)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := *entry
	return &out, nil
}

// Apply mutates the entry with one swap's delta, creating it on first use,
// and appends the swap to the history. Applying the same signature twice
// returns ErrDuplicateKey with the entry unchanged.
func (s *LedgerStore) Apply(_ context.Context, account, mint string, delta domain.LedgerDelta) (float64, error) {
	if account == "" || mint == "" || delta.Signature == "" {
		return 0, storage.ErrInvalidInput
	}

	key := ledgerKey(account, mint)
	sigKey := fmt.Sprintf("%s|%s", key, delta.Signature)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.applied[sigKey]; exists {
		return 0, storage.ErrDuplicateKey
	}

	entry, ok := s.entries[key]
	if !ok {
		entry = &domain.LedgerEntry{Account: account, Mint: mint}
		s.entries[key] = entry
	}

	entry.Balance += delta.TokenDelta
	if delta.IsBuy {
		entry.CostBasis += delta.NativeAmount
		entry.TotalTokensBought += delta.TokenDelta
		if entry.FirstBuySignature == "" {
			entry.FirstBuySignature = delta.Signature
			entry.FirstBuyAt = delta.Timestamp
		}
	} else {
		entry.TotalTokensSold += -delta.TokenDelta
	}
	entry.UpdatedAt = delta.Timestamp

	side := domain.SwapSideSell
	tokenAmount := -delta.TokenDelta
	if delta.IsBuy {
		side = domain.SwapSideBuy
		tokenAmount = delta.TokenDelta
	}
	s.history[key] = append(s.history[key], domain.SwapEvent{
		Signature:    delta.Signature,
		Timestamp:    delta.Timestamp,
		Account:      account,
		Side:         side,
		Mint:         mint,
		TokenAmount:  tokenAmount,
		NativeAmount: delta.NativeAmount,
	})

	s.applied[sigKey] = struct{}{}
	return entry.Balance, nil
}

// History retrieves swaps for (account, mint) ordered by timestamp ASC.
// With limit > 0 the most recent limit swaps are returned, still ASC.
func (s *LedgerStore) History(_ context.Context, account, mint string, limit int) ([]domain.SwapEvent, error) {
	if account == "" || mint == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.history[ledgerKey(account, mint)]
	result := make([]domain.SwapEvent, len(events))
	copy(result, events)

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result, nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
