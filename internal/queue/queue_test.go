package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, "test:events", 50*time.Millisecond)
}

func TestEnqueueDequeue_Roundtrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	in := Event{
		Type:    "verification.confirm",
		EventID: "evt-1",
		Payload: json.RawMessage(`{"username":"CoolPlayer99"}`),
	}
	if err := q.Enqueue(ctx, in); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	out, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if out == nil {
		t.Fatal("dequeue returned nil event")
	}
	if out.Type != in.Type || out.EventID != in.EventID || string(out.Payload) != string(in.Payload) {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestDequeue_FIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, Event{Type: "t", EventID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		ev, err := q.Dequeue(ctx)
		if err != nil || ev == nil {
			t.Fatalf("dequeue: ev=%v err=%v", ev, err)
		}
		if ev.EventID != want {
			t.Fatalf("order: got %s, want %s", ev.EventID, want)
		}
	}
}

func TestDequeue_IdleReturnsNil(t *testing.T) {
	q := newTestQueue(t)

	ev, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("idle dequeue: %v", err)
	}
	if ev != nil {
		t.Fatalf("idle dequeue returned event: %+v", ev)
	}
}

func TestNewRedisQueue_Defaults(t *testing.T) {
	q := NewRedisQueue(nil, "", 0)
	if q.key != DefaultKey {
		t.Fatalf("key = %q, want %q", q.key, DefaultKey)
	}
	if q.popTimeout != time.Second {
		t.Fatalf("popTimeout = %v, want 1s", q.popTimeout)
	}
}
