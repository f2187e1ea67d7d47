// Package services – PurchaseService
//
// This file implements the idempotent purchase pipeline. Creation
// deduplicates on the caller-supplied idempotency key and accepts the
// confirmation event in the same transaction as the request row;
// confirmation is applied asynchronously by the worker loop and re-checks
// the inventory cap inside its transaction, closing the race where several
// pending requests together exceed the cap.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/repo"
)

// PurchaseService owns purchase-request lifecycle and inventory accounting.
type PurchaseService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Ingest accepts the purchase.confirm event alongside the request row.
	Ingest *EventIngest
}

// NewPurchaseService constructs a PurchaseService.
func NewPurchaseService(db *gorm.DB, ingest *EventIngest) *PurchaseService {
	return &PurchaseService{DB: db, Ingest: ingest}
}

// CreateRequest records a purchase intent. A repeated idempotency key
// returns the original request unchanged: no new row, no error. New requests
// validate that the item exists and still has inventory (nil copies_total
// means unlimited), failing with ErrItemNotFound or ErrSoldOut.
//
// The purchase.confirm ledger row is written in the same transaction as the
// request row, so a crash cannot strand a pending request the worker never
// hears about. The transport push happens after commit; a lost push is
// recovered by the requeue sweep.
func (s *PurchaseService) CreateRequest(ctx context.Context, requestID string, requesterID int64, itemID, idempotencyKey string) (*domain.PurchaseRequest, error) {
	if err := s.ensureNotBanned(ctx, requesterID); err != nil {
		return nil, err
	}

	var out *domain.PurchaseRequest
	accepted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.GetPurchaseByKey(ctx, tx, idempotencyKey)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		item, err := repo.GetItem(ctx, tx, itemID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if item.CopiesTotal != nil && item.CopiesSold >= *item.CopiesTotal {
			return ErrSoldOut
		}

		out, err = repo.CreatePurchase(ctx, tx, requestID, requesterID, itemID, idempotencyKey)
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost a creation race on the same key; the original row wins,
			// and so does its ledger row.
			out, err = repo.GetPurchaseByKey(ctx, tx, idempotencyKey)
		}
		if err != nil {
			return err
		}

		if out.Status == domain.PurchasePending {
			accepted, err = s.Ingest.AcceptTx(ctx, tx, EventPurchaseConfirm,
				PurchaseEventID(out.RequestID), s.eventPayload(out.RequestID))
			if err != nil {
				return err
			}
		}
		return repo.AppendActionLog(ctx, tx, nil, "purchase_request_created", out.RequestID,
			fmt.Sprintf("requester=%d,item=%s", requesterID, itemID))
	})
	if err != nil {
		return nil, err
	}
	if accepted {
		s.Ingest.Push(ctx, EventPurchaseConfirm, PurchaseEventID(out.RequestID), s.eventPayload(out.RequestID))
	}
	return out, nil
}

func (s *PurchaseService) eventPayload(requestID string) PurchaseEventPayload {
	return PurchaseEventPayload{EventID: PurchaseEventID(requestID), RequestID: requestID}
}

// Confirm finalizes a pending request. Already-confirmed requests are
// returned unchanged (idempotent); cancelled requests return nil. The
// inventory cap is re-checked at confirmation time: when the item has sold
// out since creation, the request is cancelled instead of confirmed, and
// copies_sold never exceeds copies_total.
func (s *PurchaseService) Confirm(ctx context.Context, requestID string) (*domain.PurchaseRequest, error) {
	var out *domain.PurchaseRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := repo.GetPurchase(ctx, tx, requestID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if request.Status == domain.PurchaseConfirmed {
			out = request
			return nil
		}
		if request.Status != domain.PurchasePending {
			return nil
		}

		if _, err := repo.GetItem(ctx, tx, request.ItemID); errors.Is(err, repo.ErrNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		now := time.Now().UTC()
		affected, err := repo.IncrementCopiesSold(ctx, tx, request.ItemID)
		if err != nil {
			return err
		}
		if affected == 0 {
			// Sold out since creation.
			if _, err := repo.UpdatePurchaseStatus(ctx, tx, requestID, domain.PurchaseCancelled, nil); err != nil {
				return err
			}
			request.Status = domain.PurchaseCancelled
			out = request
			return repo.AppendActionLog(ctx, tx, nil, "purchase_cancelled", requestID, "sold out at confirmation")
		}

		if _, err := repo.UpdatePurchaseStatus(ctx, tx, requestID, domain.PurchaseConfirmed, &now); err != nil {
			return err
		}
		request.Status = domain.PurchaseConfirmed
		request.CompletedAt = &now
		out = request
		return repo.AppendActionLog(ctx, tx, nil, "purchase_confirmed", requestID,
			fmt.Sprintf("requester=%d,item=%s", request.RequesterID, request.ItemID))
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		log.Info().
			Str("request_id", requestID).
			Str("status", string(out.Status)).
			Msg("purchase confirmation handled")
	}
	return out, nil
}

// Cancel aborts a pending request with a reason. Non-pending requests are
// returned unchanged.
func (s *PurchaseService) Cancel(ctx context.Context, requestID, reason string) (*domain.PurchaseRequest, error) {
	var out *domain.PurchaseRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := repo.GetPurchase(ctx, tx, requestID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if request.Status != domain.PurchasePending {
			out = request
			return nil
		}
		if _, err := repo.UpdatePurchaseStatus(ctx, tx, requestID, domain.PurchaseCancelled, nil); err != nil {
			return err
		}
		request.Status = domain.PurchaseCancelled
		out = request
		return repo.AppendActionLog(ctx, tx, nil, "purchase_cancelled", requestID, reason)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ensureNotBanned refuses banned requesters, mirroring the verification gate.
// Known requesters get their last_active_at bumped on the way through.
func (s *PurchaseService) ensureNotBanned(ctx context.Context, requesterID int64) error {
	u, err := repo.GetUserByRequesterID(ctx, s.DB, requesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.IsBanned {
		return ErrBanned
	}
	if err := repo.TouchUser(ctx, s.DB, requesterID, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Int64("requester_id", requesterID).Msg("touch last_active failed")
	}
	return nil
}
