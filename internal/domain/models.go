// Package domain defines the persistence models for users, verification
// attempts, and queued events. These types are mapped with GORM and form
// the core data layer of the verification backend.
package domain

import "time"

// VerificationStatus enumerates the lifecycle states of a verification
// attempt. "used" and "expired" are terminal; no transition leaves them.
type VerificationStatus string

const (
	VerificationPending VerificationStatus = "pending"
	VerificationUsed    VerificationStatus = "used"
	VerificationExpired VerificationStatus = "expired"
)

// User links a chat requester to an external game account. A user becomes
// verified when a verification attempt completes; re-verification overwrites
// the previous binding.
//
// Fields:
//   - RequesterID: stable chat-platform identifier of the user (unique).
//   - ExternalAccountID: game-platform account id; nil until first verification.
//   - VerifiedAt: set when verification completes; presence means verified.
//   - IsBanned / BanReason: access gate consulted before any bot interaction.
//   - InvitedBy: optional referrer (users.id).
type User struct {
	ID                uint       `json:"id"                  gorm:"primaryKey"`
	RequesterID       int64      `json:"requester_id"        gorm:"not null;uniqueIndex"`
	ExternalAccountID *int64     `json:"external_account_id" gorm:"index"`
	Username          *string    `json:"username,omitempty"  gorm:"type:varchar(255)"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	IsBanned          bool       `json:"is_banned"           gorm:"not null;default:false"`
	BanReason         *string    `json:"ban_reason,omitempty"`
	InvitedBy         *uint      `json:"invited_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastActiveAt      time.Time  `json:"last_active_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// VerificationAttempt is one issued verification code bound to a requester
// and a claimed external nickname.
//
// At most one pending attempt may exist per requester at any instant. This
// is enforced by a partial unique index on (requester_id) WHERE
// status='pending' (see repo.EnsureIndexes) combined with transactional
// supersede-then-insert at issuance. History rows are never deleted.
type VerificationAttempt struct {
	ID              uint               `json:"id"               gorm:"primaryKey"`
	RequesterID     int64              `json:"requester_id"     gorm:"not null;index"`
	ClaimedNickname string             `json:"claimed_nickname" gorm:"type:varchar(255);not null"`
	Code            string             `json:"code"             gorm:"type:varchar(32);not null;index"`
	Status          VerificationStatus `json:"status"           gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','used','expired')"`
	ExpiresAt       time.Time          `json:"expires_at"       gorm:"not null"`
	CreatedAt       time.Time          `json:"created_at"`
}

// TableName returns the database table name for VerificationAttempt.
func (VerificationAttempt) TableName() string { return "verification_attempts" }

// QueuedEvent is the durable ledger row asserting "this event was accepted".
// It is written in the same transaction as the domain state that produced the
// event, independent of whether the queue transport delivers it.
//
// EventID uniqueness is the at-least-once/exactly-once boundary: inserting a
// duplicate fails cleanly and is treated as a successful no-op by producers.
type QueuedEvent struct {
	ID          uint       `json:"id"         gorm:"primaryKey"`
	EventID     string     `json:"event_id"   gorm:"type:varchar(128);not null;uniqueIndex"`
	EventType   string     `json:"event_type" gorm:"type:varchar(32);not null"`
	Payload     string     `json:"payload"    gorm:"type:text;not null"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TableName returns the database table name for QueuedEvent.
func (QueuedEvent) TableName() string { return "queued_events" }
