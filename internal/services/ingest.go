// Package services – EventIngest
//
// This file implements the acceptance flow for queued events: write the
// durable ledger row first, then push the event onto the transport. The
// ledger row is the source of truth; the Redis list is only the wakeup
// channel, so a push failure is survivable and repaired by Requeue.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/queue"
	"github.com/bigbob/go-verify-backend/internal/repo"
)

// Event types carried through the queue.
const (
	EventVerificationConfirm = "verification.confirm"
	EventPurchaseConfirm     = "purchase.confirm"
)

// VerificationEventPayload is the body of a verification.confirm event.
type VerificationEventPayload struct {
	EventID  string `json:"eventId"`
	Username string `json:"username,omitempty"`
	PlayerID int64  `json:"playerId"`
	Code     string `json:"code"`
}

// PurchaseEventPayload is the body of a purchase.confirm event.
type PurchaseEventPayload struct {
	EventID   string `json:"eventId"`
	RequestID string `json:"requestId"`
}

// PurchaseEventID derives the ledger id of a purchase.confirm event from the
// request id, so an Idempotency-Key replay deduplicates in the event ledger
// exactly like it does in the purchase table.
func PurchaseEventID(requestID string) string {
	return "purchase:" + requestID
}

// EventIngest accepts events at-least-once: a repeated event id is a
// successful no-op, never an error surfaced to the producer.
type EventIngest struct {
	// DB is the GORM handle holding the event ledger.
	DB *gorm.DB
	// Queue is the event transport.
	Queue queue.Queue
}

// NewEventIngest constructs an EventIngest.
func NewEventIngest(db *gorm.DB, q queue.Queue) *EventIngest {
	return &EventIngest{DB: db, Queue: q}
}

// Accept records the event in the ledger and pushes it onto the transport.
// Returns accepted=false when eventID was already seen (the original
// acceptance stands; nothing is enqueued again). Producers whose triggering
// domain write runs in its own transaction use AcceptTx on that transaction
// instead, then Push after it commits.
func (s *EventIngest) Accept(ctx context.Context, eventType, eventID string, payload any) (accepted bool, err error) {
	accepted, err = s.AcceptTx(ctx, s.DB, eventType, eventID, payload)
	if err != nil || !accepted {
		return accepted, err
	}
	s.Push(ctx, eventType, eventID, payload)
	return true, nil
}

// AcceptTx writes the ledger row on the caller's handle, which may be an open
// transaction carrying the triggering domain write. A crash can then never
// separate the two: either both commit or neither exists. The transport push
// must wait for the commit (via Push), otherwise the worker could pop an
// event whose ledger row is not visible yet.
func (s *EventIngest) AcceptTx(ctx context.Context, tx *gorm.DB, eventType, eventID string, payload any) (accepted bool, err error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	if _, err := repo.CreateQueuedEvent(ctx, tx, eventID, eventType, string(raw)); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			log.Debug().Str("event_id", eventID).Msg("duplicate event acceptance ignored")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Push wakes the worker for an already-ledgered event. A transport failure is
// logged but not surfaced: the ledger row is durable and Requeue recovers it.
func (s *EventIngest) Push(ctx context.Context, eventType, eventID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("event payload marshal failed on push")
		return
	}
	if err := s.Queue.Enqueue(ctx, queue.Event{Type: eventType, EventID: eventID, Payload: raw}); err != nil {
		log.Error().Err(err).
			Str("event_id", eventID).
			Str("event_type", eventType).
			Msg("enqueue failed after ledger write; requeue sweep will recover")
	}
}

// Requeue pushes unprocessed ledger rows older than minAge back onto the
// transport, up to limit rows, and returns how many it pushed. Redelivering
// an event whose effect already landed is safe; the worker deduplicates on
// the ledger and every effect is idempotent.
func (s *EventIngest) Requeue(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	events, err := repo.ListUnprocessedEvents(ctx, s.DB, limit)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-minAge)
	pushed := 0
	for _, e := range events {
		if e.EnqueuedAt.After(cutoff) {
			continue
		}
		ev := queue.Event{Type: e.EventType, EventID: e.EventID, Payload: json.RawMessage(e.Payload)}
		if err := s.Queue.Enqueue(ctx, ev); err != nil {
			return pushed, err
		}
		pushed++
	}
	if pushed > 0 {
		log.Info().Int("count", pushed).Msg("unprocessed events requeued")
	}
	return pushed, nil
}
