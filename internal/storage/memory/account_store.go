package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.WatchedAccount // keyed by address
}

// NewAccountStore creates a new in-memory watched account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.WatchedAccount),
	}
}

// List retrieves all watched accounts ordered by address.
func (s *AccountStore) List(_ context.Context) ([]*domain.WatchedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.WatchedAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out := *a
		result = append(result, &out)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Add registers an account. Returns ErrDuplicateKey if already watched.
func (s *AccountStore) Add(_ context.Context, account *domain.WatchedAccount) error {
	if account == nil || account.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.Address]; exists {
		return storage.ErrDuplicateKey
	}

	out := *account
	s.accounts[account.Address] = &out
	return nil
}

// Remove unregisters an address. Returns ErrNotFound if absent.
func (s *AccountStore) Remove(_ context.Context, address string) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[address]; !exists {
		return storage.ErrNotFound
	}

	delete(s.accounts, address)
	return nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
