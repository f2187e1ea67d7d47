// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for shop items and
// purchase requests.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

// GetItem fetches a shop item by id, or ErrNotFound.
func GetItem(ctx context.Context, db *gorm.DB, itemID string) (*domain.Item, error) {
	var it domain.Item
	if err := db.WithContext(ctx).Where("item_id = ?", itemID).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts a shop item. Used by admin tooling and tests.
func CreateItem(ctx context.Context, db *gorm.DB, it *domain.Item) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(it).Error
}

// IncrementCopiesSold bumps copies_sold for itemID by one, guarded by the
// inventory cap so two racing confirmations cannot oversell. It returns the
// number of affected rows: 0 means the cap was already reached.
func IncrementCopiesSold(ctx context.Context, db *gorm.DB, itemID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Item{}).
		Where("item_id = ? AND (copies_total IS NULL OR copies_sold < copies_total)", itemID).
		Update("copies_sold", gorm.Expr("copies_sold + 1"))
	return res.RowsAffected, res.Error
}

// GetPurchaseByKey fetches a purchase request by idempotency key, or ErrNotFound.
func GetPurchaseByKey(ctx context.Context, db *gorm.DB, idempotencyKey string) (*domain.PurchaseRequest, error) {
	var pr domain.PurchaseRequest
	if err := db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).First(&pr).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

// GetPurchase fetches a purchase request by its surrogate id, or ErrNotFound.
func GetPurchase(ctx context.Context, db *gorm.DB, requestID string) (*domain.PurchaseRequest, error) {
	var pr domain.PurchaseRequest
	if err := db.WithContext(ctx).Where("request_id = ?", requestID).First(&pr).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

// CreatePurchase inserts a new pending purchase request and returns
// ErrDuplicate when the idempotency key has already been seen. The caller
// resolves ErrDuplicate by re-reading the original row.
func CreatePurchase(ctx context.Context, db *gorm.DB, requestID string, requesterID int64, itemID, idempotencyKey string) (*domain.PurchaseRequest, error) {
	pr := &domain.PurchaseRequest{
		RequestID:      requestID,
		RequesterID:    requesterID,
		ItemID:         itemID,
		Status:         domain.PurchasePending,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(pr).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return pr, nil
}

// UpdatePurchaseStatus transitions a purchase request from pending to the
// given status, optionally stamping completed_at. It returns the number of
// affected rows: 0 means the request was no longer pending.
func UpdatePurchaseStatus(ctx context.Context, db *gorm.DB, requestID string, status domain.PurchaseStatus, completedAt *time.Time) (int64, error) {
	values := map[string]any{"status": status}
	if completedAt != nil {
		values["completed_at"] = *completedAt
	}
	res := db.WithContext(ctx).
		Model(&domain.PurchaseRequest{}).
		Where("request_id = ? AND status = ?", requestID, domain.PurchasePending).
		Updates(values)
	return res.RowsAffected, res.Error
}
