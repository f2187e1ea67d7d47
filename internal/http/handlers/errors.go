// Package handlers defines HTTP-layer error codes used across all API
// endpoints. These constants are the stable, machine-readable half of every
// error response (see the `fail()` helper in response.go); clients branch on
// them instead of parsing messages.
//
// Conventions:
//   - Codes are lowercase snake_case.
//   - Generic codes mirror common HTTP status semantics.
//   - Domain-specific codes carry outcomes a status alone cannot convey
//     (a banned requester and a sold-out item are both "can't do that",
//     but clients treat them very differently).
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeBanned           = "banned"
	ErrCodeItemNotFound     = "item_not_found"
	ErrCodeSoldOut          = "sold_out"
	ErrCodeTokenInvalid     = "token_invalid"
	ErrCodeIssueFailed      = "issue_failed"
	ErrCodeConfirmFailed    = "confirm_failed"
	ErrCodePurchaseFailed   = "purchase_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
