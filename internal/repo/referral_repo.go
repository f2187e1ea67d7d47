// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the referral
// reward ledger.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

// GetReferral fetches a referral by id, or ErrNotFound.
func GetReferral(ctx context.Context, db *gorm.DB, id uint) (*domain.Referral, error) {
	var r domain.Referral
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReferral inserts a pending referral row.
func CreateReferral(ctx context.Context, db *gorm.DB, r *domain.Referral) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(r).Error
}

// CountRewardedSince returns how many referrals by referrerID were rewarded
// at or after the cutoff. The reward cap check reads this inside the same
// transaction that flips the status.
func CountRewardedSince(ctx context.Context, db *gorm.DB, referrerID uint, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Referral{}).
		Where("referrer_id = ? AND status = ? AND created_at >= ?", referrerID, domain.ReferralRewarded, since).
		Count(&n).Error
	return n, err
}

// SaveReferral persists mutations on an existing referral row.
func SaveReferral(ctx context.Context, db *gorm.DB, r *domain.Referral) error {
	return db.WithContext(ctx).Save(r).Error
}
