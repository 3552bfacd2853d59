package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// Get retrieves the ledger entry for (account, mint).
func (s *LedgerStore) Get(ctx context.Context, account, mint string) (*domain.LedgerEntry, error) {
	if account == "" || mint == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT account, mint, balance, cost_basis, total_tokens_bought, total_tokens_sold,
		       first_buy_signature, first_buy_at, updated_at
		FROM ledger_entries
		WHERE account = $1 AND mint = $2
	`

	var entry domain.LedgerEntry
	err := s.pool.QueryRow(ctx, query, account, mint).Scan(
		&entry.Account,
		&entry.Mint,
		&entry.Balance,
		&entry.CostBasis,
		&entry.TotalTokensBought,
		&entry.TotalTokensSold,
		&entry.FirstBuySignature,
		&entry.FirstBuyAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &entry, nil
}

// Apply mutates the entry with one swap's delta, creating it on first use,
// and appends the swap to the history. Both writes happen in one
// transaction, so applying the same signature twice returns
// ErrDuplicateKey with the entry unchanged.
func (s *LedgerStore) Apply(ctx context.Context, account, mint string, delta domain.LedgerDelta) (float64, error) {
	if account == "" || mint == "" || delta.Signature == "" {
		return 0, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	side := domain.SwapSideSell
	tokenAmount := -delta.TokenDelta
	if delta.IsBuy {
		side = domain.SwapSideBuy
		tokenAmount = delta.TokenDelta
	}

	eventQuery := `
		INSERT INTO ledger_events (
			account, mint, signature, timestamp, side, token_amount, native_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.Exec(ctx, eventQuery,
		account, mint, delta.Signature, delta.Timestamp, side, tokenAmount, delta.NativeAmount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, storage.ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert ledger event: %w", err)
	}

	var (
		costBasis float64
		bought    float64
		sold      float64
		firstSig  string
		firstAt   int64
	)
	if delta.IsBuy {
		costBasis = delta.NativeAmount
		bought = delta.TokenDelta
		firstSig = delta.Signature
		firstAt = delta.Timestamp
	} else {
		sold = -delta.TokenDelta
	}

	entryQuery := `
		INSERT INTO ledger_entries (
			account, mint, balance, cost_basis, total_tokens_bought, total_tokens_sold,
			first_buy_signature, first_buy_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account, mint) DO UPDATE SET
			balance = ledger_entries.balance + EXCLUDED.balance,
			cost_basis = ledger_entries.cost_basis + EXCLUDED.cost_basis,
			total_tokens_bought = ledger_entries.total_tokens_bought + EXCLUDED.total_tokens_bought,
			total_tokens_sold = ledger_entries.total_tokens_sold + EXCLUDED.total_tokens_sold,
			first_buy_signature = CASE
				WHEN ledger_entries.first_buy_signature = '' THEN EXCLUDED.first_buy_signature
				ELSE ledger_entries.first_buy_signature
			END,
			first_buy_at = CASE
				WHEN ledger_entries.first_buy_signature = '' THEN EXCLUDED.first_buy_at
				ELSE ledger_entries.first_buy_at
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING balance
	`

	var balance float64
	err = tx.QueryRow(ctx, entryQuery,
		account, mint, delta.TokenDelta, costBasis, bought, sold, firstSig, firstAt, delta.Timestamp,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("upsert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return balance, nil
}

// History retrieves swaps for (account, mint) ordered by timestamp ASC.
// With limit > 0 the most recent limit swaps are returned, still ASC.
func (s *LedgerStore) History(ctx context.Context, account, mint string, limit int) ([]domain.SwapEvent, error) {
	if account == "" || mint == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT signature, timestamp, account, side, mint, token_amount, native_amount
		FROM ledger_events
		WHERE account = $1 AND mint = $2
		ORDER BY timestamp ASC, signature ASC
	`
	args := []any{account, mint}

	if limit > 0 {
		query = `
			SELECT signature, timestamp, account, side, mint, token_amount, native_amount
			FROM (
				SELECT signature, timestamp, account, side, mint, token_amount, native_amount
				FROM ledger_events
				WHERE account = $1 AND mint = $2
				ORDER BY timestamp DESC, signature DESC
				LIMIT $3
			) recent
			ORDER BY timestamp ASC, signature ASC
		`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger history: %w", err)
	}
	defer rows.Close()

	return scanLedgerEvents(rows)
}

// scanLedgerEvents scans multiple rows into a slice of SwapEvent.
func scanLedgerEvents(rows pgx.Rows) ([]domain.SwapEvent, error) {
	var events []domain.SwapEvent

	for rows.Next() {
		var e domain.SwapEvent

		err := rows.Scan(
			&e.Signature,
			&e.Timestamp,
			&e.Account,
			&e.Side,
			&e.Mint,
			&e.TokenAmount,
			&e.NativeAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger event row: %w", err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger event rows: %w", err)
	}

	return events, nil
}
