// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// VerificationAttempt model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. State-machine rules (which transitions
// are legal, when codes expire) live in services.VerificationService.
//
// Error semantics:
//   - When an attempt is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

// ExpirePendingForRequester flips every pending attempt owned by requesterID
// to expired and returns the number of superseded rows. Run inside the same
// transaction as the subsequent insert so a crash between the two steps
// cannot leave two pending rows alive.
func ExpirePendingForRequester(ctx context.Context, db *gorm.DB, requesterID int64) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.VerificationAttempt{}).
		Where("requester_id = ? AND status = ?", requesterID, domain.VerificationPending).
		Update("status", domain.VerificationExpired)
	return res.RowsAffected, res.Error
}

// CreateAttempt inserts a new pending attempt for requesterID with the given
// claimed nickname, code, and absolute expiry.
func CreateAttempt(ctx context.Context, db *gorm.DB, requesterID int64, nickname, code string, expiresAt time.Time) (*domain.VerificationAttempt, error) {
	a := &domain.VerificationAttempt{
		RequesterID:     requesterID,
		ClaimedNickname: nickname,
		Code:            code,
		Status:          domain.VerificationPending,
		ExpiresAt:       expiresAt,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// GetAttempt fetches an attempt by primary key, or ErrNotFound.
func GetAttempt(ctx context.Context, db *gorm.DB, id uint) (*domain.VerificationAttempt, error) {
	var a domain.VerificationAttempt
	if err := db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestAttemptByRequester returns the most recent attempt for requesterID
// regardless of status, or ErrNotFound.
func LatestAttemptByRequester(ctx context.Context, db *gorm.DB, requesterID int64) (*domain.VerificationAttempt, error) {
	var a domain.VerificationAttempt
	err := db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC, id DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestAttemptByCode returns the most recent attempt carrying code,
// regardless of requester. The code is the lookup key on the backend
// confirmation path, which is authenticated by an external system that
// only knows the code.
func LatestAttemptByCode(ctx context.Context, db *gorm.DB, code string) (*domain.VerificationAttempt, error) {
	var a domain.VerificationAttempt
	err := db.WithContext(ctx).
		Where("code = ?", code).
		Order("created_at DESC, id DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LatestAttemptByNickname returns the most recent attempt whose claimed
// nickname matches case-insensitively, or ErrNotFound. This path serves
// external systems that know neither the requester id nor the code.
func LatestAttemptByNickname(ctx context.Context, db *gorm.DB, nickname string) (*domain.VerificationAttempt, error) {
	var a domain.VerificationAttempt
	err := db.WithContext(ctx).
		Where("LOWER(claimed_nickname) = ?", strings.ToLower(strings.TrimSpace(nickname))).
		Order("created_at DESC, id DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkAttemptUsed transitions a pending attempt to used and tombstones its
// expiry to now. It returns ErrNotFound when the row is missing or no longer
// pending, so concurrent confirmations cannot double-apply.
func MarkAttemptUsed(ctx context.Context, db *gorm.DB, id uint, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.VerificationAttempt{}).
		Where("id = ? AND status = ?", id, domain.VerificationPending).
		Updates(map[string]any{"status": domain.VerificationUsed, "expires_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAttemptExpired transitions a pending attempt to expired. Missing or
// non-pending rows are a no-op (idempotent force-expire).
func MarkAttemptExpired(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).
		Model(&domain.VerificationAttempt{}).
		Where("id = ? AND status = ?", id, domain.VerificationPending).
		Update("status", domain.VerificationExpired).Error
}

// CountPendingForRequester returns the number of live pending attempts for
// requesterID. Used by tests and invariant checks.
func CountPendingForRequester(ctx context.Context, db *gorm.DB, requesterID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.VerificationAttempt{}).
		Where("requester_id = ? AND status = ?", requesterID, domain.VerificationPending).
		Count(&n).Error
	return n, err
}
