package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// List retrieves all watched accounts ordered by address.
func (s *AccountStore) List(ctx context.Context) ([]*domain.WatchedAccount, error) {
	query := `
		SELECT address, label, added_at
		FROM watched_accounts
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watched accounts: %w", err)
	}
	defer rows.Close()

	return scanWatchedAccounts(rows)
}

// Add registers an account. Returns ErrDuplicateKey if already watched.
func (s *AccountStore) Add(ctx context.Context, account *domain.WatchedAccount) error {
	if account == nil || account.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO watched_accounts (address, label, added_at)
		VALUES ($1, $2, $3)
	`

	_, err := s.pool.Exec(ctx, query, account.Address, account.Label, account.AddedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("add watched account: %w", err)
	}
	return nil
}

// Remove unregisters an address. Returns ErrNotFound if absent.
func (s *AccountStore) Remove(ctx context.Context, address string) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	query := `DELETE FROM watched_accounts WHERE address = $1`

	tag, err := s.pool.Exec(ctx, query, address)
	if err != nil {
		return fmt.Errorf("remove watched account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanWatchedAccounts scans multiple rows into a slice of WatchedAccount.
func scanWatchedAccounts(rows pgx.Rows) ([]*domain.WatchedAccount, error) {
	var accounts []*domain.WatchedAccount

	for rows.Next() {
		var account domain.WatchedAccount

		if err := rows.Scan(&account.Address, &account.Label, &account.AddedAt); err != nil {
			return nil, fmt.Errorf("scan watched account row: %w", err)
		}

		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watched account rows: %w", err)
	}

	return accounts, nil
}
