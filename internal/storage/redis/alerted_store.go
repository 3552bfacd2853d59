package redis

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-watch/internal/storage"
)

// AlertedStore is a Redis-backed implementation of storage.AlertedStore.
// Each alerted signature becomes one key written with SETNX, so the first
// write wins and a re-mark is a silent no-op. Keys carry a TTL; the poller
// only replays recent history, so an expired key cannot resurface an old
// transaction as a fresh alert.
type AlertedStore struct {
	client *Client
	prefix string
	ttl    time.Duration
}

// NewAlertedStore creates a Redis-backed alerted-set store. A zero ttl
// stores keys without expiry.
func NewAlertedStore(client *Client, prefix string, ttl time.Duration) *AlertedStore {
	if prefix == "" {
		prefix = "walletwatch"
	}
	return &AlertedStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Has reports whether a signature has already been alerted.
func (s *AlertedStore) Has(ctx context.Context, signature string) (bool, error) {
	if signature == "" {
		return false, storage.ErrInvalidInput
	}

	n, err := s.client.Exists(ctx, s.key(signature)).Result()
	if err != nil {
		return false, fmt.Errorf("check alerted signature: %w", err)
	}
	return n > 0, nil
}

// Mark records a signature as alerted. Marking a signature twice is not an
// error and leaves the original record in place.
func (s *AlertedStore) Mark(ctx context.Context, signature, account, mint string) error {
	if signature == "" {
		return storage.ErrInvalidInput
	}

	// The value records where the alert came from, for inspection with
	// redis-cli. Addresses are base58 so the colon cannot be ambiguous.
	value := account + ":" + mint

	if err := s.client.SetNX(ctx, s.key(signature), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("mark alerted signature: %w", err)
	}
	return nil
}

func (s *AlertedStore) key(signature string) string {
	return s.prefix + ":alerted:" + signature
}

var _ storage.AlertedStore = (*AlertedStore)(nil)
