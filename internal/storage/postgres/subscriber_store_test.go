package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

func TestSubscriberStore_ListInterested(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSubscriberStore(pool)

	err := store.Upsert(ctx, &domain.Subscriber{
		ID:       "sub-by-account",
		Accounts: []string{"acct-1"},
		Active:   true,
	})
	require.NoError(t, err)

	err = store.Upsert(ctx, &domain.Subscriber{
		ID:     "sub-by-mint",
		Mints:  []string{"MintA"},
		Active: true,
	})
	require.NoError(t, err)

	err = store.Upsert(ctx, &domain.Subscriber{
		ID:       "sub-inactive",
		Accounts: []string{"acct-1"},
		Active:   false,
	})
	require.NoError(t, err)

	// Both filters match; inactive excluded; order by ID
	subs, err := store.ListInterested(ctx, "acct-1", "MintA")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub-by-account", subs[0].ID)
	assert.Equal(t, "sub-by-mint", subs[1].ID)

	// Account-only match
	subs, err = store.ListInterested(ctx, "acct-1", "MintOther")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "sub-by-account", subs[0].ID)

	// No match
	subs, err = store.ListInterested(ctx, "acct-2", "MintOther")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriberStore_UpsertReplacesAndDeactivates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSubscriberStore(pool)

	err := store.Upsert(ctx, &domain.Subscriber{
		ID:       "sub-a",
		Accounts: []string{"acct-1"},
		Active:   true,
	})
	require.NoError(t, err)

	// Replace the filter set
	err = store.Upsert(ctx, &domain.Subscriber{
		ID:       "sub-a",
		Accounts: []string{"acct-2"},
		Active:   true,
	})
	require.NoError(t, err)

	subs, err := store.ListInterested(ctx, "acct-1", "")
	require.NoError(t, err)
	assert.Empty(t, subs)

	subs, err = store.ListInterested(ctx, "acct-2", "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, []string{"acct-2"}, subs[0].Accounts)

	// Deactivate removes it from interested sets
	err = store.Deactivate(ctx, "sub-a")
	require.NoError(t, err)

	subs, err = store.ListInterested(ctx, "acct-2", "")
	require.NoError(t, err)
	assert.Empty(t, subs)

	err = store.Deactivate(ctx, "sub-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubscriberStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSubscriberStore(pool)

	err := store.Upsert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Upsert(ctx, &domain.Subscriber{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Deactivate(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
