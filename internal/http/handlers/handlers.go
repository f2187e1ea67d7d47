// Handler wiring and service contracts.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. All service
// dependencies are interfaces so handler tests can inject fakes.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/http/middleware"
	"github.com/bigbob/go-verify-backend/internal/services"
	"github.com/bigbob/go-verify-backend/internal/session"
)

//
// Service contracts (context-aware)
//

// VerificationService defines the verification operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type VerificationService interface {
	// Issue creates a fresh pending attempt, superseding prior pending ones.
	Issue(ctx context.Context, requesterID int64, nickname string) (*domain.VerificationAttempt, error)
	// ConfirmByBackend applies an authenticated backend confirmation.
	ConfirmByBackend(ctx context.Context, nickname, code string, externalAccountID int64) (services.CheckResult, error)
	// ConfirmBySelfPoll checks the claimed profile for the code.
	ConfirmBySelfPoll(ctx context.Context, requesterID int64) (services.CheckResult, error)
	// LatestAttempt returns the requester's most recent attempt.
	LatestAttempt(ctx context.Context, requesterID int64) (*domain.VerificationAttempt, error)
	// StatusForNickname reports the state of the latest attempt for nickname.
	StatusForNickname(ctx context.Context, nickname string) (services.StatusResult, error)
}

// PurchaseService defines the purchase operations consumed by HTTP handlers.
type PurchaseService interface {
	// CreateRequest records a purchase intent, deduplicated on idempotencyKey.
	CreateRequest(ctx context.Context, requestID string, requesterID int64, itemID, idempotencyKey string) (*domain.PurchaseRequest, error)
}

// AdminService defines the admin workflow operations consumed by HTTP
// handlers.
type AdminService interface {
	CreateToken(ctx context.Context, creatorRequesterID int64, role domain.AdminRole) (*domain.AdminToken, error)
	ApproveToken(ctx context.Context, approverRequesterID int64, tokenValue string) error
	ConsumeToken(ctx context.Context, consumerRequesterID int64, tokenValue string) (*domain.Admin, error)
	BootstrapRoot(ctx context.Context, requesterID int64, initialToken, configuredToken string) (*domain.Admin, error)
	RecentLogs(ctx context.Context, requesterID int64, limit int) ([]domain.AdminActionLog, error)
	// CheckRole gates privileged endpoints on the requester's active role.
	CheckRole(ctx context.Context, requesterID int64, allowed ...domain.AdminRole) (*domain.Admin, error)
}

// ReferralService defines the referral moderation operations consumed by
// HTTP handlers.
type ReferralService interface {
	// MarkRewarded pays out a pending referral, or flags it over the cap.
	// Returns nil for an unknown referral.
	MarkRewarded(ctx context.Context, referralID uint, rewardAmount int) (*domain.Referral, error)
	// Flag marks a referral as suspicious. Returns nil for an unknown one.
	Flag(ctx context.Context, referralID uint) (*domain.Referral, error)
}

// EventIngest accepts events into the durable ledger and the queue.
type EventIngest interface {
	Accept(ctx context.Context, eventType, eventID string, payload any) (bool, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for verification, purchases, the bot
// webhook, and the admin workflow.
type Handlers struct {
	verifSvc    VerificationService
	purchSvc    PurchaseService
	adminSvc    AdminService
	referralSvc ReferralService
	ingest      EventIngest
	sessions    *session.Store

	// initialAdminToken bootstraps the root admin via /admin/login.
	initialAdminToken string
}

// New constructs a Handlers instance bound to the given services.
func New(v VerificationService, p PurchaseService, a AdminService, ref ReferralService, ing EventIngest, sessions *session.Store, initialAdminToken string) *Handlers {
	return &Handlers{
		verifSvc:          v,
		purchSvc:          p,
		adminSvc:          a,
		referralSvc:       ref,
		ingest:            ing,
		sessions:          sessions,
		initialAdminToken: initialAdminToken,
	}
}

// requesterID extracts the numeric requester identity from the X-User-ID
// header. Returns false (and writes a 400) when the header is missing or not
// a number; self-service endpoints cannot act without it.
func requesterID(c *gin.Context) (int64, bool) {
	h := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if h == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "X-User-ID header required")
		return 0, false
	}
	id, err := strconv.ParseInt(h, 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "X-User-ID must be a positive integer")
		return 0, false
	}
	middleware.SetRequesterID(c, id)
	return id, true
}
