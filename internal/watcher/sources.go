package watcher

import (
	"context"

	"solana-wallet-watch/internal/domain"
)

// TransactionSource provides enhanced transaction history for an address.
type TransactionSource interface {
	// FetchRecent returns the most recent transactions for an address,
	// newest first. A returned error is treated as transient: the pass
	// aborts and the cursor stays put.
	FetchRecent(ctx context.Context, address string) ([]domain.RawTransaction, error)
}

// PriceSource provides spot prices for token mints.
type PriceSource interface {
	// TokenPrice returns the current USD price for a mint.
	TokenPrice(ctx context.Context, mint string) (*domain.TokenPrice, error)
}

// MetadataSource provides display and market metadata for token mints.
type MetadataSource interface {
	// TokenMetadata returns name, symbol, and market cap for a mint.
	TokenMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}
