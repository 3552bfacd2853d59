package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// SubscriberStore implements storage.SubscriberStore using PostgreSQL.
type SubscriberStore struct {
	pool *Pool
}

// NewSubscriberStore creates a new SubscriberStore.
func NewSubscriberStore(pool *Pool) *SubscriberStore {
	return &SubscriberStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SubscriberStore = (*SubscriberStore)(nil)

// ListInterested retrieves active subscribers tracking the account or
// mint, ordered by ID. Matching runs in Go so the filter semantics stay
// identical across store implementations.
func (s *SubscriberStore) ListInterested(ctx context.Context, account, mint string) ([]*domain.Subscriber, error) {
	query := `
		SELECT id, accounts, mints, active
		FROM subscribers
		WHERE active = TRUE
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	subs, err := scanSubscribers(rows)
	if err != nil {
		return nil, err
	}

	var result []*domain.Subscriber
	for _, sub := range subs {
		if sub.InterestedIn(account, mint) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// Upsert inserts or replaces a subscriber by ID.
func (s *SubscriberStore) Upsert(ctx context.Context, sub *domain.Subscriber) error {
	if sub == nil || sub.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO subscribers (id, accounts, mints, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			accounts = EXCLUDED.accounts,
			mints = EXCLUDED.mints,
			active = EXCLUDED.active
	`

	accounts := sub.Accounts
	if accounts == nil {
		accounts = []string{}
	}
	mints := sub.Mints
	if mints == nil {
		mints = []string{}
	}

	if _, err := s.pool.Exec(ctx, query, sub.ID, accounts, mints, sub.Active); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// Deactivate marks a subscriber inactive. Returns ErrNotFound if absent.
func (s *SubscriberStore) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return storage.ErrInvalidInput
	}

	query := `UPDATE subscribers SET active = FALSE WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanSubscribers scans multiple rows into a slice of Subscriber.
func scanSubscribers(rows pgx.Rows) ([]*domain.Subscriber, error) {
	var subs []*domain.Subscriber

	for rows.Next() {
		var sub domain.Subscriber

		if err := rows.Scan(&sub.ID, &sub.Accounts, &sub.Mints, &sub.Active); err != nil {
			return nil, fmt.Errorf("scan subscriber row: %w", err)
		}

		subs = append(subs, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriber rows: %w", err)
	}

	return subs, nil
}
