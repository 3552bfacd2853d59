package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-watch/internal/domain"
	"solana-wallet-watch/internal/storage"
)

func TestAccountStore_AddAndList(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	err := store.Add(ctx, &domain.WatchedAccount{Address: "addr1", Label: "whale", AddedAt: 1000})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	accounts, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("Expected 1 account, got %d", len(accounts))
	}
	if accounts[0].Label != "whale" {
		t.Errorf("Label mismatch: got %s", accounts[0].Label)
	}
}

func TestAccountStore_DuplicateAdd(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	store.Add(ctx, &domain.WatchedAccount{Address: "addr1"})
	err := store.Add(ctx, &domain.WatchedAccount{Address: "addr1"})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestAccountStore_Remove(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	store.Add(ctx, &domain.WatchedAccount{Address: "addr1"})
	if err := store.Remove(ctx, "addr1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	accounts, _ := store.List(ctx)
	if len(accounts) != 0 {
		t.Errorf("Expected empty store after remove, got %d", len(accounts))
	}
}

func TestAccountStore_RemoveMissing(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	err := store.Remove(ctx, "addr1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAccountStore_ListOrdered(t *testing.T) {
	store := NewAccountStore()
	ctx := context.Background()

	store.Add(ctx, &domain.WatchedAccount{Address: "c"})
	store.Add(ctx, &domain.WatchedAccount{Address: "a"})
	store.Add(ctx, &domain.WatchedAccount{Address: "b"})

	accounts, _ := store.List(ctx)
	for i := 1; i < len(accounts); i++ {
		if accounts[i].Address < accounts[i-1].Address {
			t.Errorf("List not ordered: %s < %s", accounts[i].Address, accounts[i-1].Address)
		}
	}
}
