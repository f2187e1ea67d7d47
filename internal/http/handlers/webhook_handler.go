// Bot webhook handlers.
//
// These endpoints are called by the game-side backend and are authenticated
// by the HMAC signature middleware (X-Signature over the raw body), not by
// X-User-ID:
//   - POST /bot/verification/check    (synchronous confirmation)
//   - POST /bot/verification/confirm  (async: ledger + enqueue, 202)
//   - POST /bot/verification/status   (read-only status query)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bigbob/go-verify-backend/internal/services"
)

// CheckVerificationRequest is the payload for the synchronous check.
type CheckVerificationRequest struct {
	Username string `json:"username"`
	PlayerID int64  `json:"playerId" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// ConfirmVerificationRequest is the payload for async confirmation. EventID
// deduplicates redeliveries; Username is optional and cross-checked against
// the stored claim when present.
type ConfirmVerificationRequest struct {
	EventID  string `json:"eventId" binding:"required"`
	Username string `json:"username"`
	PlayerID int64  `json:"playerId" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// VerificationStatusRequest is the payload for the status query.
type VerificationStatusRequest struct {
	Username string `json:"username" binding:"required"`
}

// CheckVerification applies a backend confirmation synchronously and returns
// the resulting outcome. All state-machine outcomes (expired, mismatch,
// not_found, ...) are 200 responses; only transport and storage failures are
// errors.
func (h *Handlers) CheckVerification(c *gin.Context) {
	var req CheckVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "playerId and code are required")
		return
	}

	res, err := h.verifSvc.ConfirmByBackend(c.Request.Context(), req.Username, req.Code, req.PlayerID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeConfirmFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":   res.Status,
		"username": res.ClaimedNickname,
	})
}

// ConfirmVerification accepts a confirmation event for asynchronous
// processing: the event is written to the durable ledger and pushed onto the
// queue in one acceptance flow. A repeated eventId is deduplicated and still
// answered 202; the original acceptance stands.
func (h *Handlers) ConfirmVerification(c *gin.Context) {
	var req ConfirmVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "eventId, playerId and code are required")
		return
	}

	payload := services.VerificationEventPayload{
		EventID:  req.EventID,
		Username: req.Username,
		PlayerID: req.PlayerID,
		Code:     req.Code,
	}
	accepted, err := h.ingest.Accept(c.Request.Context(), services.EventVerificationConfirm, req.EventID, payload)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeConfirmFailed, err.Error())
		return
	}
	ok(c, http.StatusAccepted, gin.H{
		"accepted":  true,
		"duplicate": !accepted,
		"eventId":   req.EventID,
	})
}

// VerificationStatus reports the verification state of the latest attempt
// claiming the given username. Read-only: a pending attempt past its TTL is
// reported expired without being mutated.
func (h *Handlers) VerificationStatus(c *gin.Context) {
	var req VerificationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "username is required")
		return
	}

	res, err := h.verifSvc.StatusForNickname(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{
		"status":   res.Status,
		"username": res.ClaimedNickname,
	})
}
