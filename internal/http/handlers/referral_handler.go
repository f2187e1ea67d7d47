// Referral moderation handlers.
//
//   - POST /admin/referrals/:id/reward  (main or manager pays out a referral)
//   - POST /admin/referrals/:id/flag    (any admin flags a suspicious one)
//
// Rewarding goes through the daily-cap check in the referral service; a
// referral over the cap comes back flagged instead of rewarded.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/services"
)

// RewardReferralRequest carries the payout amount.
type RewardReferralRequest struct {
	Amount int `json:"amount" binding:"required,gt=0"`
}

func referralID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "referral id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// RewardReferral pays out a pending referral, or flags it when the referrer's
// daily cap is already reached. Main and manager admins only.
func (h *Handlers) RewardReferral(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}
	if _, err := h.adminSvc.CheckRole(c.Request.Context(), rid, domain.RoleMain, domain.RoleManager); err != nil {
		if errors.Is(err, services.ErrRoleDenied) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "main or manager role required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	id, okRef := referralID(c)
	if !okRef {
		return
	}
	var req RewardReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount must be a positive integer")
		return
	}

	referral, err := h.referralSvc.MarkRewarded(c.Request.Context(), id, req.Amount)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if referral == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "referral not found")
		return
	}
	ok(c, http.StatusOK, referral)
}

// FlagReferral marks a referral as suspicious. Any active admin may flag.
func (h *Handlers) FlagReferral(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}
	if _, err := h.adminSvc.CheckRole(c.Request.Context(), rid, domain.RoleMain, domain.RoleManager, domain.RoleSupport); err != nil {
		if errors.Is(err, services.ErrRoleDenied) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "admin role required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	id, okRef := referralID(c)
	if !okRef {
		return
	}

	referral, err := h.referralSvc.Flag(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if referral == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "referral not found")
		return
	}
	ok(c, http.StatusOK, referral)
}
