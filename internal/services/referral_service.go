// Package services – ReferralService
//
// This file implements referral-reward accounting: a simple counter with a
// per-referrer daily cap. Referrals over the cap are flagged rather than
// rewarded so abuse can be reviewed instead of silently paid out.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/repo"
)

// ReferralService owns referral reward decisions.
type ReferralService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// DailyRewardCap limits how many referrals one referrer may have
	// rewarded within a rolling 24h window.
	DailyRewardCap int
}

// NewReferralService constructs a ReferralService with a default cap.
func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db, DailyRewardCap: 1000}
}

// CanReward reports whether referrerID is still under its rolling daily cap.
func (s *ReferralService) CanReward(ctx context.Context, referrerID uint) (bool, error) {
	since := time.Now().UTC().Add(-24 * time.Hour)
	n, err := repo.CountRewardedSince(ctx, s.DB, referrerID, since)
	if err != nil {
		return false, err
	}
	return n < int64(s.DailyRewardCap), nil
}

// MarkRewarded flips a pending referral to rewarded with the given amount,
// or to flagged when the referrer's daily cap is already reached.
// Non-pending referrals are returned unchanged.
func (s *ReferralService) MarkRewarded(ctx context.Context, referralID uint, rewardAmount int) (*domain.Referral, error) {
	var out *domain.Referral
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		referral, err := repo.GetReferral(ctx, tx, referralID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if referral.Status != domain.ReferralPending {
			out = referral
			return nil
		}

		since := time.Now().UTC().Add(-24 * time.Hour)
		rewarded, err := repo.CountRewardedSince(ctx, tx, referral.ReferrerID, since)
		if err != nil {
			return err
		}
		if rewarded >= int64(s.DailyRewardCap) {
			referral.Status = domain.ReferralFlagged
		} else {
			referral.Status = domain.ReferralRewarded
			referral.RewardAmount = rewardAmount
		}
		out = referral
		return repo.SaveReferral(ctx, tx, referral)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Flag marks a referral as suspicious regardless of its current state.
func (s *ReferralService) Flag(ctx context.Context, referralID uint) (*domain.Referral, error) {
	referral, err := repo.GetReferral(ctx, s.DB, referralID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	referral.Status = domain.ReferralFlagged
	if err := repo.SaveReferral(ctx, s.DB, referral); err != nil {
		return nil, err
	}
	return referral, nil
}
