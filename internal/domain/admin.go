// Package domain defines the core persistence models for the application.
// This file holds the administrative privilege-escalation models and the
// referral-reward ledger.
package domain

import "time"

// AdminRole enumerates the privilege tiers of the admin workflow.
type AdminRole string

const (
	RoleMain    AdminRole = "main"
	RoleManager AdminRole = "manager"
	RoleSupport AdminRole = "support"
)

// Valid reports whether r is one of the known roles.
func (r AdminRole) Valid() bool {
	switch r {
	case RoleMain, RoleManager, RoleSupport:
		return true
	}
	return false
}

// Admin grants a requester an administrative role. A revoked admin keeps its
// row with RevokedAt set; role checks only consider non-revoked rows.
type Admin struct {
	AdminID     uint       `json:"admin_id"     gorm:"primaryKey"`
	RequesterID int64      `json:"requester_id" gorm:"not null;uniqueIndex"`
	Role        AdminRole  `json:"role"         gorm:"type:varchar(16);not null"`
	GrantedBy   *uint      `json:"granted_by,omitempty"`
	GrantedAt   time.Time  `json:"granted_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// TableName returns the database table name for Admin.
func (Admin) TableName() string { return "admins" }

// AdminToken is a single-use, time-bound onboarding token. It must be
// approved by an existing main admin before it can be consumed, and can be
// consumed exactly once.
type AdminToken struct {
	ID            uint       `json:"id"             gorm:"primaryKey"`
	Token         string     `json:"token"          gorm:"type:varchar(64);not null;uniqueIndex"`
	RoleRequested AdminRole  `json:"role_requested" gorm:"type:varchar(16);not null"`
	CreatedBy     uint       `json:"created_by"     gorm:"not null"`
	ApprovedBy    *uint      `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ConsumedBy    *uint      `json:"consumed_by,omitempty"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"     gorm:"not null"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName returns the database table name for AdminToken.
func (AdminToken) TableName() string { return "admin_tokens" }

// AdminActionLog is an append-only audit trail of administrative and
// system-level mutations. Rows are never updated or deleted.
type AdminActionLog struct {
	ActionID   uint      `json:"action_id"   gorm:"primaryKey"`
	AdminID    *uint     `json:"admin_id,omitempty"`
	ActionType string    `json:"action_type" gorm:"type:varchar(64);not null;index"`
	Target     *string   `json:"target,omitempty"  gorm:"type:varchar(255)"`
	Details    *string   `json:"details,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for AdminActionLog.
func (AdminActionLog) TableName() string { return "admin_actions_log" }

// ReferralStatus enumerates the lifecycle states of a referral.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "pending"
	ReferralRewarded ReferralStatus = "rewarded"
	ReferralFlagged  ReferralStatus = "flagged"
)

// Referral records that one user invited another. Rewarding is capped per
// referrer per day; referrals over the cap are flagged instead.
type Referral struct {
	ID           uint           `json:"id"            gorm:"primaryKey"`
	ReferrerID   uint           `json:"referrer_id"   gorm:"not null;index"`
	ReferredID   uint           `json:"referred_id"   gorm:"not null;index"`
	RewardAmount int            `json:"reward_amount" gorm:"not null;default:0"`
	Status       ReferralStatus `json:"status"        gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the database table name for Referral.
func (Referral) TableName() string { return "referrals" }
