package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// SwapArchiveStore is an in-memory implementation of storage.SwapArchiveStore.
// Re-inserting a signature replaces the previous row, mirroring the
// ReplacingMergeTree semantics of the ClickHouse implementation.
type SwapArchiveStore struct {
	mu    sync.RWMutex
	swaps map[string]*domain.ArchivedSwap // keyed by signature
}

// NewSwapArchiveStore creates a new in-memory swap archive store.
func NewSwapArchiveStore() *SwapArchiveStore {
	return &SwapArchiveStore{
		swaps: make(map[string]*domain.ArchivedSwap),
	}
}

// Insert appends archived swaps, replacing rows with the same signature.
func (s *SwapArchiveStore) Insert(_ context.Context, swaps []*domain.ArchivedSwap) error {
	if len(swaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sw := range swaps {
		if sw == nil || sw.Signature == "" {
			return storage.ErrInvalidInput
		}
		out := *sw
		s.swaps[sw.Signature] = &out
	}

	return nil
}

// BuysByAccount retrieves buys for an account ordered by timestamp ASC.
// With limit > 0 the most recent limit buys are returned, still ASC.
func (s *SwapArchiveStore) BuysByAccount(_ context.Context, account string, limit int) ([]*domain.ArchivedSwap, error) {
	if account == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ArchivedSwap
	for _, sw := range s.swaps {
		if sw.Account == account && sw.Side == domain.SwapSideBuy {
			out := *sw
			result = append(result, &out)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}

	return result, nil
}

var _ storage.SwapArchiveStore = (*SwapArchiveStore)(nil)
