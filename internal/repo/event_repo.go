// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the QueuedEvent
// ledger backing the at-least-once event queue.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

// CreateQueuedEvent inserts a ledger row and returns ErrDuplicate on a
// repeated event id. Producers must call this inside the same transaction as
// the domain write that triggered the event, so "accepted but never recorded"
// cannot happen.
func CreateQueuedEvent(ctx context.Context, db *gorm.DB, eventID, eventType, payload string) (*domain.QueuedEvent, error) {
	e := &domain.QueuedEvent{
		EventID:    eventID,
		EventType:  eventType,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return e, nil
}

// GetQueuedEvent fetches a ledger row by event id, or ErrNotFound.
func GetQueuedEvent(ctx context.Context, db *gorm.DB, eventID string) (*domain.QueuedEvent, error) {
	var e domain.QueuedEvent
	if err := db.WithContext(ctx).Where("event_id = ?", eventID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// MarkEventProcessed stamps processed_at on the ledger row once the
// corresponding effect has been durably applied. Unknown event ids are a
// no-op: redeliveries of events whose ledger row predates a retention sweep
// must not fail the worker.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, eventID string, now time.Time) error {
	if eventID == "" {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.QueuedEvent{}).
		Where("event_id = ? AND processed_at IS NULL", eventID).
		Update("processed_at", now).Error
}

// ListUnprocessedEvents returns up to limit ledger rows that were accepted
// but never marked processed, oldest first. This is the recovery record for
// manual or derived reprocessing when the transport loses an event.
func ListUnprocessedEvents(ctx context.Context, db *gorm.DB, limit int) ([]domain.QueuedEvent, error) {
	var out []domain.QueuedEvent
	err := db.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("enqueued_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
