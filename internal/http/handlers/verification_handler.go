// Self-service verification handlers.
//
// These endpoints are driven by the requester (identified by X-User-ID):
//   - POST /verifications        (claim a nickname, receive a code)
//   - POST /verifications/poll   (check the claimed profile for the code)
//   - GET  /verifications/latest (snapshot of the most recent attempt)
//   - GET  /session              (current dialog position)
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/repo"
	"github.com/bigbob/go-verify-backend/internal/services"
)

// IssueVerificationRequest is the payload for claiming a nickname.
type IssueVerificationRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

// AttemptResponse is the wire snapshot of a verification attempt. The code is
// included: it is the requester's own and they must place it in their
// profile.
type AttemptResponse struct {
	Code            string    `json:"code"`
	Status          string    `json:"status"`
	ClaimedNickname string    `json:"claimed_nickname"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func attemptResponse(a *domain.VerificationAttempt) AttemptResponse {
	return AttemptResponse{
		Code:            a.Code,
		Status:          string(a.Status),
		ClaimedNickname: a.ClaimedNickname,
		ExpiresAt:       a.ExpiresAt,
		CreatedAt:       a.CreatedAt,
	}
}

// IssueVerification claims a nickname and issues a fresh code. Any prior
// pending attempt of the requester is superseded; issuing is never rejected
// because one exists.
func (h *Handlers) IssueVerification(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	var req IssueVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Nickname) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nickname is required")
		return
	}

	attempt, err := h.verifSvc.Issue(c.Request.Context(), rid, req.Nickname)
	switch {
	case errors.Is(err, services.ErrEmptyNickname):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nickname is required")
		return
	case errors.Is(err, services.ErrBanned):
		fail(c, http.StatusForbidden, ErrCodeBanned, "requester is banned")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeIssueFailed, err.Error())
		return
	}

	// Advance the dialog: nickname is captured, the code is now awaited.
	h.sessions.Begin(rid)
	h.sessions.SetNickname(rid, attempt.ClaimedNickname)

	ok(c, http.StatusCreated, attemptResponse(attempt))
}

// PollVerification resolves the claimed profile and checks it for the code.
// Outcomes are returned as 200 responses; "pending" means the code was not
// found yet and the requester should edit their profile and poll again.
func (h *Handlers) PollVerification(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	res, err := h.verifSvc.ConfirmBySelfPoll(c.Request.Context(), rid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeConfirmFailed, err.Error())
		return
	}
	if res.Status == services.StatusVerified || res.Status == services.StatusAlreadyVerified {
		h.sessions.Reset(rid)
	}
	ok(c, http.StatusOK, res)
}

// LatestVerification returns the requester's most recent attempt regardless
// of status.
func (h *Handlers) LatestVerification(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	attempt, err := h.verifSvc.LatestAttempt(c.Request.Context(), rid)
	if errors.Is(err, repo.ErrNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no verification attempt found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, attemptResponse(attempt))
}

// DialogState returns the requester's current dialog position; expired
// sessions read as idle.
func (h *Handlers) DialogState(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}
	sess := h.sessions.Get(rid)
	ok(c, http.StatusOK, gin.H{
		"state":    sess.State,
		"nickname": sess.Nickname,
	})
}
