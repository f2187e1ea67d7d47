// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model
// (the linked identity between a chat requester and a game account).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

// GetUserByRequesterID fetches a user by chat requester id, or ErrNotFound.
func GetUserByRequesterID(ctx context.Context, db *gorm.DB, requesterID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("requester_id = ?", requesterID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertVerifiedUser binds externalAccountID to the requester's user row,
// creating the row when absent. Re-verification overwrites the previous
// binding; the verification engine owns this terminal-transition step and is
// the only caller.
func UpsertVerifiedUser(ctx context.Context, db *gorm.DB, requesterID, externalAccountID int64, now time.Time) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Where("requester_id = ?", requesterID).First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = domain.User{
			RequesterID:       requesterID,
			ExternalAccountID: &externalAccountID,
			VerifiedAt:        &now,
			CreatedAt:         now,
			LastActiveAt:      now,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			return nil, err
		}
		return &u, nil
	case err != nil:
		return nil, err
	}

	u.ExternalAccountID = &externalAccountID
	u.VerifiedAt = &now
	u.LastActiveAt = now
	if err := db.WithContext(ctx).Save(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchUser bumps last_active_at for an existing user. Missing users are a
// no-op; activity tracking must never fail a request.
func TouchUser(ctx context.Context, db *gorm.DB, requesterID int64, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("requester_id = ?", requesterID).
		Update("last_active_at", now).Error
}
