// Package services defines the business logic for verification, purchases,
// admin privileges, and referrals. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer. Expected state-machine outcomes (expired
// code, nickname mismatch, sold-out item) are NOT errors; they are typed
// outcome values returned alongside a nil error.
package services

import "errors"

var (
	// ErrEmptyNickname is returned when a verification claim carries an
	// empty or whitespace-only nickname.
	ErrEmptyNickname = errors.New("nickname must not be empty")

	// ErrBanned indicates the requester is banned and may not interact
	// with the bot at all.
	ErrBanned = errors.New("requester is banned")

	// ErrItemNotFound indicates that the purchased item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrSoldOut is returned when an item's inventory cap is exhausted at
	// purchase-creation time.
	ErrSoldOut = errors.New("item sold out")

	// ErrTokenInvalid covers admin tokens that are unknown, expired,
	// unapproved, or already consumed.
	ErrTokenInvalid = errors.New("admin token invalid")

	// ErrRoleDenied indicates the requester does not hold any of the roles
	// an operation requires.
	ErrRoleDenied = errors.New("admin role denied")

	// ErrAlreadyAdmin indicates the requester already holds an admin row
	// and cannot consume another onboarding token.
	ErrAlreadyAdmin = errors.New("requester is already an admin")
)
