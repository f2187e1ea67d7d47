// Package worker implements the queue consumer that applies confirmation
// events. Delivery from the queue is at-least-once; the durable event ledger
// plus guarded state transitions in the services keep the effect of each
// event exactly-once. A redelivered event either finds its ledger row already
// processed or hits an idempotent service path, so retries are always safe.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/queue"
	"github.com/bigbob/go-verify-backend/internal/repo"
	"github.com/bigbob/go-verify-backend/internal/services"
)

var (
	eventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_events_processed_total",
			Help: "Queue events handled by the worker, by type and result.",
		},
		[]string{"type", "result"},
	)
	eventsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_events_duplicate_total",
			Help: "Redelivered events skipped because their ledger row was already processed.",
		},
	)
)

// VerificationConfirmer is the slice of VerificationService the worker needs.
type VerificationConfirmer interface {
	ConfirmByBackend(ctx context.Context, nickname, code string, externalAccountID int64) (services.CheckResult, error)
}

// PurchaseConfirmer is the slice of PurchaseService the worker needs.
type PurchaseConfirmer interface {
	Confirm(ctx context.Context, requestID string) (*domain.PurchaseRequest, error)
}

// Worker drains the event queue and applies each event once.
type Worker struct {
	// DB is the GORM handle holding the event ledger.
	DB *gorm.DB
	// Queue is the event transport.
	Queue queue.Queue
	// Verifications applies verification confirmations.
	Verifications VerificationConfirmer
	// Purchases applies purchase confirmations.
	Purchases PurchaseConfirmer
	// IdleSleep is slept after an empty poll.
	IdleSleep time.Duration
	// ErrorBackoff is slept after a failed event before polling again.
	ErrorBackoff time.Duration
}

// New constructs a Worker with default timings.
func New(db *gorm.DB, q queue.Queue, v VerificationConfirmer, p PurchaseConfirmer) *Worker {
	return &Worker{
		DB:            db,
		Queue:         q,
		Verifications: v,
		Purchases:     p,
		IdleSleep:     200 * time.Millisecond,
		ErrorBackoff:  time.Second,
	}
}

// Run polls the queue until ctx is cancelled. Handler errors are logged and
// the event is dropped back to the at-least-once contract (its ledger row
// stays unprocessed); malformed events are logged and discarded.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Msg("worker started")
	for {
		if err := ctx.Err(); err != nil {
			log.Info().Msg("worker stopping")
			return err
		}

		ev, err := w.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("queue dequeue failed")
			w.sleep(ctx, w.ErrorBackoff)
			continue
		}
		if ev == nil {
			w.sleep(ctx, w.IdleSleep)
			continue
		}

		if err := w.Handle(ctx, ev); err != nil {
			eventsProcessed.WithLabelValues(ev.Type, "error").Inc()
			log.Error().Err(err).
				Str("event_type", ev.Type).
				Str("event_id", ev.EventID).
				Msg("event handling failed")
			w.sleep(ctx, w.ErrorBackoff)
			continue
		}
		eventsProcessed.WithLabelValues(ev.Type, "ok").Inc()
	}
}

// Handle applies a single event. Exposed for tests and for synchronous
// draining tools.
func (w *Worker) Handle(ctx context.Context, ev *queue.Event) error {
	if ev.EventID != "" {
		ledger, err := repo.GetQueuedEvent(ctx, w.DB, ev.EventID)
		if err == nil && ledger.ProcessedAt != nil {
			eventsDuplicate.Inc()
			log.Debug().Str("event_id", ev.EventID).Msg("duplicate event skipped")
			return nil
		}
	}

	switch ev.Type {
	case services.EventVerificationConfirm:
		var p services.VerificationEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			log.Warn().Err(err).Str("event_id", ev.EventID).Msg("malformed verification event dropped")
			return repo.MarkEventProcessed(ctx, w.DB, ev.EventID, time.Now().UTC())
		}
		res, err := w.Verifications.ConfirmByBackend(ctx, p.Username, p.Code, p.PlayerID)
		if err != nil {
			return err
		}
		log.Info().
			Str("event_id", ev.EventID).
			Str("status", string(res.Status)).
			Msg("verification event applied")

	case services.EventPurchaseConfirm:
		var p services.PurchaseEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			log.Warn().Err(err).Str("event_id", ev.EventID).Msg("malformed purchase event dropped")
			return repo.MarkEventProcessed(ctx, w.DB, ev.EventID, time.Now().UTC())
		}
		if _, err := w.Purchases.Confirm(ctx, p.RequestID); err != nil {
			return err
		}
		log.Info().
			Str("event_id", ev.EventID).
			Str("request_id", p.RequestID).
			Msg("purchase event applied")

	default:
		log.Warn().Str("event_type", ev.Type).Str("event_id", ev.EventID).Msg("unknown event type dropped")
	}

	return repo.MarkEventProcessed(ctx, w.DB, ev.EventID, time.Now().UTC())
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
