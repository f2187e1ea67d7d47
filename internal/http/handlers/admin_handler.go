// Admin workflow handlers.
//
//   - POST /admin/tokens          (main admin issues an onboarding token)
//   - POST /admin/tokens/approve  (main admin approves a token)
//   - POST /admin/login           (consume a token, or bootstrap the root)
//   - GET  /admin/logs            (main admin reads the audit log)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/services"
)

// CreateAdminTokenRequest asks for a one-time onboarding token.
type CreateAdminTokenRequest struct {
	Role string `json:"role" binding:"required"`
}

// AdminTokenActionRequest carries a token value for approve/login.
type AdminTokenActionRequest struct {
	Token string `json:"token" binding:"required"`
}

// CreateAdminToken issues a one-time onboarding token for the requested role.
// Only main admins may call this.
func (h *Handlers) CreateAdminToken(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	var req CreateAdminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role is required")
		return
	}
	role := domain.AdminRole(strings.ToLower(strings.TrimSpace(req.Role)))

	token, err := h.adminSvc.CreateToken(c.Request.Context(), rid, role)
	switch {
	case errors.Is(err, services.ErrRoleDenied):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "main admin role required")
		return
	case errors.Is(err, services.ErrTokenInvalid):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown role")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"token":      token.Token,
		"role":       token.RoleRequested,
		"expires_at": token.ExpiresAt,
	})
}

// ApproveAdminToken marks an onboarding token as approved.
func (h *Handlers) ApproveAdminToken(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	var req AdminTokenActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token is required")
		return
	}

	err := h.adminSvc.ApproveToken(c.Request.Context(), rid, strings.TrimSpace(req.Token))
	switch {
	case errors.Is(err, services.ErrRoleDenied):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "main admin role required")
		return
	case errors.Is(err, services.ErrTokenInvalid):
		fail(c, http.StatusBadRequest, ErrCodeTokenInvalid, "token unknown, expired, or already approved")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// AdminLogin exchanges a token for an admin role. The configured initial
// token bootstraps the root admin exactly once; any other value is treated
// as an onboarding token.
func (h *Handlers) AdminLogin(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	var req AdminTokenActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token is required")
		return
	}
	tokenValue := strings.TrimSpace(req.Token)

	var (
		admin *domain.Admin
		err   error
	)
	if h.initialAdminToken != "" && tokenValue == h.initialAdminToken {
		admin, err = h.adminSvc.BootstrapRoot(c.Request.Context(), rid, tokenValue, h.initialAdminToken)
	} else {
		admin, err = h.adminSvc.ConsumeToken(c.Request.Context(), rid, tokenValue)
	}
	switch {
	case errors.Is(err, services.ErrTokenInvalid):
		fail(c, http.StatusUnauthorized, ErrCodeTokenInvalid, "token invalid")
		return
	case errors.Is(err, services.ErrAlreadyAdmin):
		fail(c, http.StatusConflict, ErrCodeConflict, "already an admin")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, gin.H{
		"admin_id": admin.AdminID,
		"role":     admin.Role,
	})
}

// AdminLogs returns the newest audit rows. Only main admins may call this.
func (h *Handlers) AdminLogs(c *gin.Context) {
	rid, okID := requesterID(c)
	if !okID {
		return
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	logs, err := h.adminSvc.RecentLogs(c.Request.Context(), rid, limit)
	switch {
	case errors.Is(err, services.ErrRoleDenied):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "main admin role required")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"logs": logs})
}
