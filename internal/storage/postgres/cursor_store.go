package postgres

import (
	"context"
	"fmt"

	"solana-wallet-watch/internal/storage"
)

// CursorStore implements storage.CursorStore using PostgreSQL.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new CursorStore.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CursorStore = (*CursorStore)(nil)

// Get retrieves the cursor signature for an account.
func (s *CursorStore) Get(ctx context.Context, account string) (string, error) {
	if account == "" {
		return "", storage.ErrInvalidInput
	}

	query := `SELECT signature FROM cursors WHERE account = $1`

	var signature string
	err := s.pool.QueryRow(ctx, query, account).Scan(&signature)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get cursor: %w", err)
	}
	return signature, nil
}

// Set stores the cursor signature for an account, replacing any previous
// value.
func (s *CursorStore) Set(ctx context.Context, account, signature string) error {
	if account == "" || signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO cursors (account, signature, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account) DO UPDATE SET
			signature = EXCLUDED.signature,
			updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, account, signature); err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
