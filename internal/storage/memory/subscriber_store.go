package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// SubscriberStore is an in-memory implementation of storage.SubscriberStore.
type SubscriberStore struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscriber // keyed by subscriber ID
}

// NewSubscriberStore creates a new in-memory subscriber store.
func NewSubscriberStore() *SubscriberStore {
	return &SubscriberStore{
		subs: make(map[string]*domain.Subscriber),
	}
}

// ListInterested retrieves active subscribers tracking the account or mint.
func (s *SubscriberStore) ListInterested(_ context.Context, account, mint string) ([]*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Subscriber
	for _, sub := range s.subs {
		if !sub.Active {
			continue
		}
		if sub.InterestedIn(account, mint) {
			result = append(result, copySubscriber(sub))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Upsert inserts or replaces a subscriber by ID.
func (s *SubscriberStore) Upsert(_ context.Context, sub *domain.Subscriber) error {
	if sub == nil || sub.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.ID] = copySubscriber(sub)
	return nil
}

// Deactivate marks a subscriber inactive. Returns ErrNotFound if absent.
func (s *SubscriberStore) Deactivate(_ context.Context, id string) error {
	if id == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, exists := s.subs[id]
	if !exists {
		return storage.ErrNotFound
	}

	sub.Active = false
	return nil
}

// copySubscriber returns a deep copy so callers cannot mutate stored state.
func copySubscriber(sub *domain.Subscriber) *domain.Subscriber {
	out := *sub
	out.Accounts = append([]string(nil), sub.Accounts...)
	out.Mints = append([]string(nil), sub.Mints...)
	return &out
}

var _ storage.SubscriberStore = (*SubscriberStore)(nil)
