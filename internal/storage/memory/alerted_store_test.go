package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-watch/internal/storage"
)

func TestAlertedStore_HasUnmarked(t *testing.T) {
	store := NewAlertedStore()
	ctx := context.Background()

	has, err := store.Has(ctx, "sig1")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Error("Expected unmarked signature to report false")
	}
}

func TestAlertedStore_MarkAndHas(t *testing.T) {
	store := NewAlertedStore()
	ctx := context.Background()

	if err := store.Mark(ctx, "sig1", "acct1", "mintA"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}

	has, err := store.Has(ctx, "sig1")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !has {
		t.Error("Expected marked signature to report true")
	}
}

func TestAlertedStore_DoubleMark(t *testing.T) {
	store := NewAlertedStore()
	ctx := context.Background()

	if err := store.Mark(ctx, "sig1", "acct1", "mintA"); err != nil {
		t.Fatalf("First mark failed: %v", err)
	}
	if err := store.Mark(ctx, "sig1", "acct2", "mintB"); err != nil {
		t.Errorf("Second mark should be a no-op, got %v", err)
	}
}

func TestAlertedStore_InvalidInput(t *testing.T) {
	store := NewAlertedStore()
	ctx := context.Background()

	if _, err := store.Has(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := store.Mark(ctx, "", "acct1", "mintA"); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
