package memory

import (
	"context"
	"sync"

	"solana-wallet-watch/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]string // account -> last signature
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]string),
	}
}

// Get retrieves the cursor signature for an account.
func (s *CursorStore) Get(_ context.Context, account string) (string, error) {
	if account == "" {
		return "", storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.cursors[account]
	if !ok {
		return "", storage.ErrNotFound
	}
	return sig, nil
}

// Set stores the cursor signature for an account.
func (s *CursorStore) Set(_ context.Context, account, signature string) error {
	if account == "" || signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[account] = signature
	return nil
}

var _ storage.CursorStore = (*CursorStore)(nil)
