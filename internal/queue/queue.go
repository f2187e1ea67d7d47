// Package queue implements the inter-process event handoff between the
// synchronous webhook path and the asynchronous worker path, backed by a
// Redis list (RPUSH to append, BLPOP to pop).
//
// Delivery is at-least-once: a popped event is not guaranteed processed, and
// the transport itself may lose events. Durability and deduplication come
// from the queued_events ledger table (see repo.CreateQueuedEvent), which is
// written transactionally with the domain state producing each event. The
// list is only the wakeup channel between processes.
//
// Ordering is best-effort FIFO; consumers must not rely on cross-event
// ordering since every event's effect is idempotent and independent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list key events are pushed onto.
const DefaultKey = "verify:events"

// Event is one queue item. EventID keys the durable ledger row; Payload is
// event-type-specific JSON.
type Event struct {
	Type    string          `json:"type"`
	EventID string          `json:"event_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Queue is the transport contract used by producers and the worker loop.
// Dequeue blocks up to the configured poll timeout and returns (nil, nil)
// when no event arrived.
type Queue interface {
	Enqueue(ctx context.Context, ev Event) error
	Dequeue(ctx context.Context) (*Event, error)
}

// RedisQueue is a Queue backed by a Redis list.
type RedisQueue struct {
	client     *redis.Client
	key        string
	popTimeout time.Duration
}

// NewRedisQueue wraps client with the given list key and blocking-pop
// timeout. Zero values fall back to DefaultKey and one second.
func NewRedisQueue(client *redis.Client, key string, popTimeout time.Duration) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if popTimeout <= 0 {
		popTimeout = time.Second
	}
	return &RedisQueue{client: client, key: key, popTimeout: popTimeout}
}

// Enqueue appends the event to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, raw).Err()
}

// Dequeue pops one event, blocking up to the pop timeout. An idle timeout
// yields (nil, nil) so the caller can sleep and poll again. Undecodable
// items are dropped with an error: replaying a poison payload forever would
// block the queue.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Event, error) {
	res, err := q.client.BLPop(ctx, q.popTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, nil
	}
	var ev Event
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
