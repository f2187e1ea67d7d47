// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the admin
// privilege workflow: admins, one-time onboarding tokens, and the
// append-only action log.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

// GetActiveAdmin fetches the non-revoked admin row for requesterID, or
// ErrNotFound. Revoked admins are invisible to role checks.
func GetActiveAdmin(ctx context.Context, db *gorm.DB, requesterID int64) (*domain.Admin, error) {
	var a domain.Admin
	err := db.WithContext(ctx).
		Where("requester_id = ? AND revoked_at IS NULL", requesterID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAdminByID fetches an admin by primary key, or ErrNotFound.
func GetAdminByID(ctx context.Context, db *gorm.DB, adminID uint) (*domain.Admin, error) {
	var a domain.Admin
	if err := db.WithContext(ctx).Where("admin_id = ?", adminID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAdminByRole returns any non-revoked admin holding role, or ErrNotFound.
// Used to detect whether a root ("main") admin has been bootstrapped.
func FindAdminByRole(ctx context.Context, db *gorm.DB, role domain.AdminRole) (*domain.Admin, error) {
	var a domain.Admin
	err := db.WithContext(ctx).
		Where("role = ? AND revoked_at IS NULL", role).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAdmin inserts an admin row. ErrDuplicate is returned when the
// requester already holds an admin row.
func CreateAdmin(ctx context.Context, db *gorm.DB, a *domain.Admin) error {
	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetAdminToken fetches a token row by its opaque value, or ErrNotFound.
func GetAdminToken(ctx context.Context, db *gorm.DB, token string) (*domain.AdminToken, error) {
	var t domain.AdminToken
	if err := db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateAdminToken inserts a one-time onboarding token.
func CreateAdminToken(ctx context.Context, db *gorm.DB, t *domain.AdminToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(t).Error
}

// SaveAdminToken persists mutations on an existing token row (approval,
// consumption). The full row is written; callers mutate inside the owning
// transaction only.
func SaveAdminToken(ctx context.Context, db *gorm.DB, t *domain.AdminToken) error {
	return db.WithContext(ctx).Save(t).Error
}

// AppendActionLog appends an audit row. actionType is mandatory; target and
// details are free-form context. Audit writes share the caller's transaction
// so an aborted operation leaves no trace.
func AppendActionLog(ctx context.Context, db *gorm.DB, adminID *uint, actionType, target, details string) error {
	row := &domain.AdminActionLog{
		AdminID:    adminID,
		ActionType: actionType,
		CreatedAt:  time.Now().UTC(),
	}
	if target != "" {
		row.Target = &target
	}
	if details != "" {
		row.Details = &details
	}
	return db.WithContext(ctx).Create(row).Error
}

// ListActionLogs returns the most recent audit rows, newest first.
func ListActionLogs(ctx context.Context, db *gorm.DB, limit int) ([]domain.AdminActionLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []domain.AdminActionLog
	err := db.WithContext(ctx).
		Order("created_at DESC, action_id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
