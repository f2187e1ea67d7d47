// Package services – AdminService
//
// This file implements the administrative privilege-escalation workflow:
// one-time onboarding tokens with a create/approve/consume lifecycle, the
// bootstrap of the root admin, and the role-check collaborator consulted by
// privileged operations. Every mutation appends to the audit log inside the
// same transaction.
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
	"github.com/bigbob/go-verify-backend/internal/security"
)

// AdminService owns admin roles, onboarding tokens, and the audit log.
type AdminService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// TokenTTL bounds how long an onboarding token stays consumable.
	TokenTTL time.Duration
}

// NewAdminService constructs an AdminService with the default fifteen-minute
// token TTL.
func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{DB: db, TokenTTL: 15 * time.Minute}
}

// CheckRole returns the requester's active admin row when it holds one of
// the allowed roles, and ErrRoleDenied otherwise. Revoked admins never pass.
func (s *AdminService) CheckRole(ctx context.Context, requesterID int64, allowed ...domain.AdminRole) (*domain.Admin, error) {
	admin, err := repo.GetActiveAdmin(ctx, s.DB, requesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoleDenied
	}
	if err != nil {
		return nil, err
	}
	for _, role := range allowed {
		if admin.Role == role {
			return admin, nil
		}
	}
	return nil, ErrRoleDenied
}

// BootstrapRoot promotes requesterID to the root ("main") admin when the
// supplied initial token matches the configured one and no root admin exists
// yet. Subsequent calls are refused.
func (s *AdminService) BootstrapRoot(ctx context.Context, requesterID int64, initialToken, configuredToken string) (*domain.Admin, error) {
	if configuredToken == "" || initialToken != configuredToken {
		return nil, ErrTokenInvalid
	}

	var admin *domain.Admin
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.FindAdminByRole(ctx, tx, domain.RoleMain); err == nil {
			return ErrAlreadyAdmin
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		admin = &domain.Admin{
			RequesterID: requesterID,
			Role:        domain.RoleMain,
			GrantedAt:   time.Now().UTC(),
		}
		if err := repo.CreateAdmin(ctx, tx, admin); err != nil {
			return err
		}
		return repo.AppendActionLog(ctx, tx, &admin.AdminID, "admin_init",
			fmt.Sprintf("%d", requesterID), "root admin bootstrapped")
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("requester_id", requesterID).Msg("root admin bootstrapped")
	return admin, nil
}

// CreateToken issues a one-time onboarding token for role, authored by an
// existing main admin. The token still needs approval before consumption
// (ApproveToken may be called immediately by the same admin).
func (s *AdminService) CreateToken(ctx context.Context, creatorRequesterID int64, role domain.AdminRole) (*domain.AdminToken, error) {
	if !role.Valid() {
		return nil, ErrTokenInvalid
	}
	creator, err := s.CheckRole(ctx, creatorRequesterID, domain.RoleMain)
	if err != nil {
		return nil, err
	}

	token := &domain.AdminToken{
		Token:         security.GenerateToken("ADM"),
		RoleRequested: role,
		CreatedBy:     creator.AdminID,
		ExpiresAt:     time.Now().UTC().Add(s.TokenTTL),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateAdminToken(ctx, tx, token); err != nil {
			return err
		}
		return repo.AppendActionLog(ctx, tx, &creator.AdminID, "admin_token_created",
			token.Token, "role="+string(role))
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// ApproveToken marks a token as approved by a main admin. Expired or
// already-approved tokens are refused.
func (s *AdminService) ApproveToken(ctx context.Context, approverRequesterID int64, tokenValue string) error {
	approver, err := s.CheckRole(ctx, approverRequesterID, domain.RoleMain)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := repo.GetAdminToken(ctx, tx, tokenValue)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if token.ExpiresAt.Before(now) || token.ApprovedAt != nil {
			return ErrTokenInvalid
		}

		token.ApprovedAt = &now
		token.ApprovedBy = &approver.AdminID
		if err := repo.SaveAdminToken(ctx, tx, token); err != nil {
			return err
		}
		return repo.AppendActionLog(ctx, tx, &approver.AdminID, "admin_token_approved",
			token.Token, "role="+string(token.RoleRequested))
	})
}

// ConsumeToken exchanges an approved, unexpired, unconsumed token for an
// admin role on consumerRequesterID. Each token can be consumed exactly
// once, and a requester already holding an admin row cannot consume another.
func (s *AdminService) ConsumeToken(ctx context.Context, consumerRequesterID int64, tokenValue string) (*domain.Admin, error) {
	var admin *domain.Admin
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := repo.GetAdminToken(ctx, tx, tokenValue)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if token.ConsumedAt != nil || token.ExpiresAt.Before(now) {
			return ErrTokenInvalid
		}
		if token.ApprovedAt == nil || token.ApprovedBy == nil {
			return ErrTokenInvalid
		}

		if _, err := repo.GetActiveAdmin(ctx, tx, consumerRequesterID); err == nil {
			return ErrAlreadyAdmin
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		admin = &domain.Admin{
			RequesterID: consumerRequesterID,
			Role:        token.RoleRequested,
			GrantedBy:   token.ApprovedBy,
			GrantedAt:   now,
		}
		if err := repo.CreateAdmin(ctx, tx, admin); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrAlreadyAdmin
			}
			return err
		}

		token.ConsumedBy = &admin.AdminID
		token.ConsumedAt = &now
		if err := repo.SaveAdminToken(ctx, tx, token); err != nil {
			return err
		}
		return repo.AppendActionLog(ctx, tx, token.ApprovedBy, "admin_onboarded",
			fmt.Sprintf("%d", consumerRequesterID), "role="+string(admin.Role))
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("requester_id", consumerRequesterID).
		Str("role", string(admin.Role)).
		Msg("admin onboarded")
	return admin, nil
}

// RecentLogs returns the newest audit rows for a main admin.
func (s *AdminService) RecentLogs(ctx context.Context, requesterID int64, limit int) ([]domain.AdminActionLog, error) {
	if _, err := s.CheckRole(ctx, requesterID, domain.RoleMain); err != nil {
		return nil, err
	}
	return repo.ListActionLogs(ctx, s.DB, limit)
}
