package clickhouse

import (
	"context"
	"fmt"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

// SwapArchiveStore implements storage.SwapArchiveStore using ClickHouse.
type SwapArchiveStore struct {
	conn *Conn
}

// NewSwapArchiveStore creates a new SwapArchiveStore.
func NewSwapArchiveStore(conn *Conn) *SwapArchiveStore {
	return &SwapArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SwapArchiveStore = (*SwapArchiveStore)(nil)

// Insert appends archived swaps in one batch. MergeTree inserts never
// fail on duplicates; replayed signatures are collapsed by the
// ReplacingMergeTree engine at merge time.
func (s *SwapArchiveStore) Insert(ctx context.Context, swaps []*domain.ArchivedSwap) error {
	if len(swaps) == 0 {
		return nil
	}
	for _, sw := range swaps {
		if sw == nil || sw.Signature == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO swap_archive (
			signature, timestamp, account, mint, side,
			token_amount, native_amount, token_price_usd, market_cap_usd
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sw := range swaps {
		err = batch.Append(
			sw.Signature, uint64(sw.Timestamp), sw.Account, sw.Mint, sw.Side,
			sw.TokenAmount, sw.NativeAmount, sw.TokenPriceUSD, sw.MarketCapUSD,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// BuysByAccount retrieves buys for an account ordered by timestamp ASC.
// With limit > 0 the most recent limit buys are returned, still ASC.
// FINAL folds unmerged replays so a signature appears once.
func (s *SwapArchiveStore) BuysByAccount(ctx context.Context, account string, limit int) ([]*domain.ArchivedSwap, error) {
	if account == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT signature, timestamp, account, mint, side,
		       token_amount, native_amount, token_price_usd, market_cap_usd
		FROM swap_archive FINAL
		WHERE account = ? AND side = 'buy'
		ORDER BY timestamp DESC, signature DESC
	`
	args := []any{account}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query buys by account: %w", err)
	}
	defer rows.Close()

	swaps, err := scanArchivedSwaps(rows)
	if err != nil {
		return nil, err
	}

	// Rows arrive newest first; flip to ascending
	for i, j := 0, len(swaps)-1; i < j; i, j = i+1, j-1 {
		swaps[i], swaps[j] = swaps[j], swaps[i]
	}
	return swaps, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanArchivedSwaps scans multiple rows into a slice of ArchivedSwap.
func scanArchivedSwaps(rows chRows) ([]*domain.ArchivedSwap, error) {
	var swaps []*domain.ArchivedSwap

	for rows.Next() {
		var sw domain.ArchivedSwap
		var timestamp uint64

		err := rows.Scan(
			&sw.Signature, &timestamp, &sw.Account, &sw.Mint, &sw.Side,
			&sw.TokenAmount, &sw.NativeAmount, &sw.TokenPriceUSD, &sw.MarketCapUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archived swap row: %w", err)
		}

		sw.Timestamp = int64(timestamp)
		swaps = append(swaps, &sw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived swap rows: %w", err)
	}

	return swaps, nil
}
