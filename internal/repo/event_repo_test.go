package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateQueuedEvent_DuplicateEventID(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if _, err := CreateQueuedEvent(ctx, db, "evt-1", "verification.confirm", `{"code":"BB-111111"}`); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateQueuedEvent(ctx, db, "evt-1", "verification.confirm", `{"code":"BB-222222"}`); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create: err = %v, want ErrDuplicate", err)
	}

	// The original payload wins.
	got, err := GetQueuedEvent(ctx, db, "evt-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Payload != `{"code":"BB-111111"}` {
		t.Fatalf("payload = %s, want the original", got.Payload)
	}
}

func TestMarkEventProcessed_OnceAndUnknownNoOp(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateQueuedEvent(ctx, db, "evt-2", "purchase.confirm", `{}`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := MarkEventProcessed(ctx, db, "evt-2", now); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	got, err := GetQueuedEvent(ctx, db, "evt-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ProcessedAt == nil {
		t.Fatal("processed_at not stamped")
	}
	first := *got.ProcessedAt

	// Redelivery must not move the stamp.
	if err := MarkEventProcessed(ctx, db, "evt-2", now.Add(time.Hour)); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	got, _ = GetQueuedEvent(ctx, db, "evt-2")
	if !got.ProcessedAt.Equal(first) {
		t.Fatalf("processed_at moved from %v to %v", first, got.ProcessedAt)
	}

	if err := MarkEventProcessed(ctx, db, "evt-unknown", now); err != nil {
		t.Fatalf("unknown id should be a no-op: %v", err)
	}
	if err := MarkEventProcessed(ctx, db, "", now); err != nil {
		t.Fatalf("empty id should be a no-op: %v", err)
	}
}

func TestListUnprocessedEvents_OldestFirstAndLimited(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := CreateQueuedEvent(ctx, db, id, "verification.confirm", `{}`); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := MarkEventProcessed(ctx, db, "b", time.Now().UTC()); err != nil {
		t.Fatalf("mark b: %v", err)
	}

	out, err := ListUnprocessedEvents(ctx, db, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].EventID != "a" || out[1].EventID != "c" {
		t.Fatalf("unexpected list: %+v", out)
	}

	out, err = ListUnprocessedEvents(ctx, db, 1)
	if err != nil || len(out) != 1 || out[0].EventID != "a" {
		t.Fatalf("limited list: %+v err=%v", out, err)
	}
}
