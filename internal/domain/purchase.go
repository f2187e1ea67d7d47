// Package domain defines the core persistence models for the application.
// This file holds the shop inventory and purchase-request models.
package domain

import "time"

// PurchaseStatus enumerates the lifecycle states of a purchase request.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseConfirmed PurchaseStatus = "confirmed"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

// Item is a purchasable shop entry with an optional inventory cap.
// A nil CopiesTotal means unlimited supply.
type Item struct {
	ItemID       string    `json:"item_id"       gorm:"type:varchar(64);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	Description  *string   `json:"description,omitempty" gorm:"type:text"`
	CopiesTotal  *int      `json:"copies_total,omitempty"`
	CopiesSold   int       `json:"copies_sold"   gorm:"not null;default:0"`
	CreatorAdmin *uint     `json:"creator_admin,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "items" }

// PurchaseRequest records one purchase intent. The caller-supplied
// IdempotencyKey is the true deduplication key (unique); RequestID is a
// system-generated surrogate. A second creation call with an already-seen
// key returns the original row unchanged.
type PurchaseRequest struct {
	RequestID      string         `json:"request_id"      gorm:"type:char(40);primaryKey"`
	RequesterID    int64          `json:"requester_id"    gorm:"not null;index"`
	ItemID         string         `json:"item_id"         gorm:"type:varchar(64);not null;index"`
	Status         PurchaseStatus `json:"status"          gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','confirmed','cancelled')"`
	IdempotencyKey string         `json:"idempotency_key" gorm:"type:varchar(200);not null;uniqueIndex"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the database table name for PurchaseRequest.
func (PurchaseRequest) TableName() string { return "purchase_requests" }
