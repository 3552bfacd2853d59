package postgres

import (
	"context"
	"fmt"

	"solana-wallet-watch/internal/storage"
)

// AlertedStore implements storage.AlertedStore using PostgreSQL.
type AlertedStore struct {
	pool *Pool
}

// NewAlertedStore creates a new AlertedStore.
func NewAlertedStore(pool *Pool) *AlertedStore {
	return &AlertedStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertedStore = (*AlertedStore)(nil)

// Has reports whether a signature has already been alerted.
func (s *AlertedStore) Has(ctx context.Context, signature string) (bool, error) {
	if signature == "" {
		return false, storage.ErrInvalidInput
	}

	query := `SELECT EXISTS (SELECT 1 FROM alerted_signatures WHERE signature = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, signature).Scan(&exists); err != nil {
		return false, fmt.Errorf("check alerted signature: %w", err)
	}
	return exists, nil
}

// Mark records a signature as alerted. The first write wins; marking the
// same signature again is a no-op.
func (s *AlertedStore) Mark(ctx context.Context, signature, account, mint string) error {
	if signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alerted_signatures (signature, account, mint)
		VALUES ($1, $2, $3)
		ON CONFLICT (signature) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, signature, account, mint); err != nil {
		return fmt.Errorf("mark alerted signature: %w", err)
	}
	return nil
}
