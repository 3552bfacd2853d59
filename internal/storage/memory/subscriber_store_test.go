package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

func TestSubscriberStore_ListInterestedByAccount(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	store.Upsert(ctx, &domain.Subscriber{ID: "sub1", Accounts: []string{"acct1"}, Active: true})
	store.Upsert(ctx, &domain.Subscriber{ID: "sub2", Accounts: []string{"acct2"}, Active: true})

	subs, err := store.ListInterested(ctx, "acct1", "mintX")
	if err != nil {
		t.Fatalf("ListInterested failed: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "sub1" {
		t.Errorf("Expected only sub1, got %d subscribers", len(subs))
	}
}

func TestSubscriberStore_ListInterestedByMint(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	store.Upsert(ctx, &domain.Subscriber{ID: "sub1", Mints: []string{"mintA"}, Active: true})

	subs, _ := store.ListInterested(ctx, "someone-else", "mintA")
	if len(subs) != 1 {
		t.Errorf("Expected mint-tracking subscriber to match, got %d", len(subs))
	}
}

func TestSubscriberStore_ExcludesInactive(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	store.Upsert(ctx, &domain.Subscriber{ID: "sub1", Accounts: []string{"acct1"}, Active: true})
	if err := store.Deactivate(ctx, "sub1"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	subs, _ := store.ListInterested(ctx, "acct1", "mintX")
	if len(subs) != 0 {
		t.Errorf("Deactivated subscriber should not match, got %d", len(subs))
	}
}

func TestSubscriberStore_DeactivateMissing(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	err := store.Deactivate(ctx, "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSubscriberStore_UpsertReplaces(t *testing.T) {
	store := NewSubscriberStore()
	ctx := context.Background()

	store.Upsert(ctx, &domain.Subscriber{ID: "sub1", Accounts: []string{"acct1"}, Active: true})
	store.Upsert(ctx, &domain.Subscriber{ID: "sub1", Accounts: []string{"acct2"}, Active: true})

	subs, _ := store.ListInterested(ctx, "acct1", "")
	if len(subs) != 0 {
		t.Errorf("Old membership should be gone after upsert, got %d", len(subs))
	}
	subs, _ = store.ListInterested(ctx, "acct2", "")
	if len(subs) != 1 {
		t.Errorf("New membership missing after upsert, got %d", len(subs))
	}
}
