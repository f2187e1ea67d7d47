package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

func TestIncrementCopiesSold_StopsAtCap(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	total := 2
	if err := CreateItem(ctx, db, &domain.Item{ItemID: "sword", Name: "Sword", CopiesTotal: &total}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	for i := 0; i < total; i++ {
		n, err := IncrementCopiesSold(ctx, db, "sword")
		if err != nil || n != 1 {
			t.Fatalf("increment %d: n=%d err=%v", i, n, err)
		}
	}
	// Third increment must be refused by the guard, not oversell.
	n, err := IncrementCopiesSold(ctx, db, "sword")
	if err != nil || n != 0 {
		t.Fatalf("over-cap increment: n=%d err=%v, want 0", n, err)
	}

	it, err := GetItem(ctx, db, "sword")
	if err != nil || it.CopiesSold != total {
		t.Fatalf("copies_sold = %d, err = %v, want %d", it.CopiesSold, err, total)
	}
}

func TestIncrementCopiesSold_UnlimitedWhenCapNull(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if err := CreateItem(ctx, db, &domain.Item{ItemID: "potion", Name: "Potion"}); err != nil {
		t.Fatalf("create item: %v", err)
	}
	for i := 0; i < 5; i++ {
		if n, err := IncrementCopiesSold(ctx, db, "potion"); err != nil || n != 1 {
			t.Fatalf("increment %d: n=%d err=%v", i, n, err)
		}
	}
}

func TestCreatePurchase_DuplicateIdempotencyKey(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreatePurchase(ctx, db, "req-a", 1, "sword", "key-1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreatePurchase(ctx, db, "req-b", 1, "sword", "key-1"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create: err = %v, want ErrDuplicate", err)
	}

	got, err := GetPurchaseByKey(ctx, db, "key-1")
	if err != nil || got.RequestID != "req-a" {
		t.Fatalf("by key: %+v err=%v, want req-a", got, err)
	}
}

func TestUpdatePurchaseStatus_PendingOnly(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreatePurchase(ctx, db, "req-c", 2, "sword", "key-2"); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := UpdatePurchaseStatus(ctx, db, "req-c", domain.PurchaseConfirmed, &now)
	if err != nil || n != 1 {
		t.Fatalf("confirm: n=%d err=%v", n, err)
	}
	// A second transition attempt (e.g. a racing cancel) must not touch the
	// confirmed row.
	n, err = UpdatePurchaseStatus(ctx, db, "req-c", domain.PurchaseCancelled, nil)
	if err != nil || n != 0 {
		t.Fatalf("cancel after confirm: n=%d err=%v, want 0", n, err)
	}

	got, err := GetPurchase(ctx, db, "req-c")
	if err != nil || got.Status != domain.PurchaseConfirmed || got.CompletedAt == nil {
		t.Fatalf("final row: %+v err=%v", got, err)
	}
}
