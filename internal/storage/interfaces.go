package storage

import (
	"context"

	"solana-wallet-watch/internal/domain"
)

// CursorStore tracks the last successfully processed transaction signature
// per watched account.
type CursorStore interface {
	// Get retrieves the cursor signature for an account. Returns ErrNotFound
	// when the account has never been processed.
	Get(ctx context.Context, account string) (string, error)

	// Set stores the cursor signature for an account, overwriting any
	// previous value. Callers enforce monotonicity; the store does not.
	Set(ctx context.Context, account, signature string) error
}

// AlertedStore is the write-once set of transaction signatures that have
// already produced an alert. Makes emission idempotent across polling
// cycles and process restarts.
type AlertedStore interface {
	// Has reports whether a signature has already been alerted.
	Has(ctx context.Context, signature string) (bool, error)

	// Mark records a signature as alerted. Marking a signature twice is
	// not an error.
	Mark(ctx context.Context, signature, account, mint string) error
}

// LedgerStore provides access to per-(account, mint) position state and
// the chronological swap history behind it.
type LedgerStore interface {
	// Get retrieves the ledger entry for (account, mint). Returns
	// ErrNotFound when no swap has ever been applied for the key.
	Get(ctx context.Context, account, mint string) (*domain.LedgerEntry, error)

	// Apply mutates the entry with one swap's delta, creating the entry on
	// first use, and appends the swap to the history. Returns the new
	// balance. Applying the same signature twice returns ErrDuplicateKey
	// with the entry unchanged.
	Apply(ctx context.Context, account, mint string, delta domain.LedgerDelta) (float64, error)

	// History retrieves up to limit swaps for (account, mint) ordered by
	// timestamp ASC. limit <= 0 means no limit.
	History(ctx context.Context, account, mint string, limit int) ([]domain.SwapEvent, error)
}

// AccountStore provides access to the watched account set.
type AccountStore interface {
	// List retrieves all watched accounts.
	List(ctx context.Context) ([]*domain.WatchedAccount, error)

	// Add registers an account. Returns ErrDuplicateKey if the address is
	// already watched, ErrInvalidInput if the address is empty.
	Add(ctx context.Context, account *domain.WatchedAccount) error

	// Remove unregisters an address. Returns ErrNotFound if absent.
	Remove(ctx context.Context, address string) error
}

// SubscriberStore provides access to alert subscribers.
type SubscriberStore interface {
	// ListInterested retrieves active subscribers tracking the account or
	// the mint.
	ListInterested(ctx context.Context, account, mint string) ([]*domain.Subscriber, error)

	// Upsert inserts or replaces a subscriber by ID.
	Upsert(ctx context.Context, sub *domain.Subscriber) error

	// Deactivate marks a subscriber inactive after an emission failure.
	// Returns ErrNotFound if absent.
	Deactivate(ctx context.Context, id string) error
}

// SwapArchiveStore is the append-only archive of classified swaps with
// market context, used to rebuild analyzer baselines.
type SwapArchiveStore interface {
	// Insert appends archived swaps. Duplicate signatures are tolerated;
	// the archive is eventually-deduplicated by the engine.
	Insert(ctx context.Context, swaps []*domain.ArchivedSwap) error

	// BuysByAccount retrieves up to limit most recent buys for an account,
	// ordered by timestamp ASC. limit <= 0 means no limit.
	BuysByAccount(ctx context.Context, account string, limit int) ([]*domain.ArchivedSwap, error)
}
