// Purchase handlers.
//
// POST /purchases records a purchase intent; the purchase service writes the
// confirmation event's ledger row in the same transaction and wakes the
// worker after commit. The caller supplies an Idempotency-Key header;
// retrying with the same key returns the original request, creates nothing,
// and enqueues nothing new.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bigbob/go-verify-backend/internal/services"
)

// HeaderIdempotencyKey carries the client-chosen deduplication key.
const HeaderIdempotencyKey = "Idempotency-Key"

// maxIdempotencyKeyLen bounds the key so it fits the indexed column.
const maxIdempotencyKeyLen = 200

// CreatePurchaseRequest is the payload for recording a purchase intent.
type CreatePurchaseRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// PurchaseResponse is the wire snapshot of a purchase request.
type PurchaseResponse struct {
	RequestID string `json:"request_id"`
	ItemID    string `json:"item_id"`
	Status    string `json:"status"`
}

// CreatePurchase records the intent; the service accepts a purchase.confirm
// event in the same transaction. Both layers are idempotent: the intent on
// the Idempotency-Key, the event on its ledger id, so a client retry answers
// 202 with the original request and no second effect.
func (h *Handlers) CreatePurchase(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" || len(key) > maxIdempotencyKeyLen {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Idempotency-Key header required (1-200 chars)")
		return
	}

	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ItemID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "item_id is required")
		return
	}

	request, err := h.purchSvc.CreateRequest(c.Request.Context(), uuid.NewString(), rid, strings.TrimSpace(req.ItemID), key)
	switch {
	case errors.Is(err, services.ErrBanned):
		fail(c, http.StatusForbidden, ErrCodeBanned, "requester is banned")
		return
	case errors.Is(err, services.ErrItemNotFound):
		fail(c, http.StatusNotFound, ErrCodeItemNotFound, "item not found")
		return
	case errors.Is(err, services.ErrSoldOut):
		fail(c, http.StatusConflict, ErrCodeSoldOut, "item sold out")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodePurchaseFailed, err.Error())
		return
	}

	ok(c, http.StatusAccepted, PurchaseResponse{
		RequestID: request.RequestID,
		ItemID:    request.ItemID,
		Status:    string(request.Status),
	})
}
