package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

func TestAccountStore_AddListRemove(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	accounts, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	// Insert out of order; List returns address order
	err = store.Add(ctx, &domain.WatchedAccount{Address: "bbb", Label: "second", AddedAt: 1700000000})
	require.NoError(t, err)
	err = store.Add(ctx, &domain.WatchedAccount{Address: "aaa", Label: "first", AddedAt: 1700000001})
	require.NoError(t, err)

	accounts, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "aaa", accounts[0].Address)
	assert.Equal(t, "first", accounts[0].Label)
	assert.Equal(t, int64(1700000001), accounts[0].AddedAt)
	assert.Equal(t, "bbb", accounts[1].Address)

	// Duplicate address
	err = store.Add(ctx, &domain.WatchedAccount{Address: "aaa"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Remove
	err = store.Remove(ctx, "aaa")
	require.NoError(t, err)

	accounts, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "bbb", accounts[0].Address)

	// Removing again
	err = store.Remove(ctx, "aaa")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountStore(pool)

	err := store.Add(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Add(ctx, &domain.WatchedAccount{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Remove(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
