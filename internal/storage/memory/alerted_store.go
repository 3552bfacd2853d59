package memory

import (
	"context"
	"sync"

	"solana-wallet-watch/internal/storage"
)

// alertedRecord keeps the context in which a signature was alerted.
type alertedRecord struct {
	account string
	mint    string
}

// AlertedStore is an in-memory implementation of storage.AlertedStore.
type AlertedStore struct {
	mu   sync.RWMutex
	seen map[string]alertedRecord // signature -> context
}

// NewAlertedStore creates a new in-memory alerted-set store.
func NewAlertedStore() *AlertedStore {
	return &AlertedStore{
		seen: make(map[string]alertedRecord),
	}
}

// Has reports whether a signature has already been alerted.
func (s *AlertedStore) Has(_ context.Context, signature string) (bool, error) {
	if signature == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.seen[signature]
	return ok, nil
}

// Mark records a signature as alerted. The first write wins; marking the
// same signature again is a no-op.
func (s *AlertedStore) Mark(_ context.Context, signature, account, mint string) error {
	if signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[signature]; exists {
		return nil
	}
	s.seen[signature] = alertedRecord{account: account, mint: mint}
	return nil
}

var _ storage.AlertedStore = (*AlertedStore)(nil)
