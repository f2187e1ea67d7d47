// Package services – VerificationService
//
// This file implements the verification engine: the state machine governing
// code issuance, confirmation, expiry, and the terminal application of a
// confirmed code to the linked identity.
//
// Two confirmation paths exist. The backend path is authenticated by an
// external system that only knows the code; the self-poll path is triggered
// by the requester and checks the claimed profile's free text for the code.
// Both converge on the same terminal transition (applyConfirmation), so the
// two entry points cannot drift apart in behavior.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/repo"
	"github.com/bigbob/go-verify-backend/internal/roblox"
)

// CheckStatus is the outcome of a confirmation attempt.
type CheckStatus string

const (
	StatusVerified        CheckStatus = "verified"
	StatusAlreadyVerified CheckStatus = "already_verified"
	StatusNotFound        CheckStatus = "not_found"
	StatusExpired         CheckStatus = "expired"
	StatusMismatch        CheckStatus = "mismatch"
	StatusPending         CheckStatus = "pending"
	StatusUnavailable     CheckStatus = "unavailable"
)

// CheckResult is returned by the confirmation paths.
type CheckResult struct {
	Status CheckStatus `json:"status"`
	// ClaimedNickname echoes the nickname stored on the attempt (or the
	// caller-supplied one when no attempt matched).
	ClaimedNickname string `json:"claimed_nickname"`
	// RequesterID is set when a concrete attempt was involved.
	RequesterID int64 `json:"requester_id,omitempty"`
}

// StatusResult is returned by nickname status queries.
type StatusResult struct {
	Status          CheckStatus `json:"status"`
	ClaimedNickname string      `json:"claimed_nickname"`
}

// VerificationService owns the verification state machine. All durable state
// transitions happen inside transactions on DB; the single-pending invariant
// is enforced by the database (partial unique index) plus transactional
// supersede-then-insert, never by in-process locking.
type VerificationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Resolver fetches external profiles on the self-poll path.
	Resolver roblox.Resolver
	// CodeTTL is the lifetime of an issued code.
	CodeTTL time.Duration
}

// NewVerificationService constructs a VerificationService with the default
// ten-minute code TTL.
func NewVerificationService(db *gorm.DB, resolver roblox.Resolver) *VerificationService {
	return &VerificationService{DB: db, Resolver: resolver, CodeTTL: 10 * time.Minute}
}

// Issue creates a fresh pending attempt for requesterID claiming nickname.
// Any prior pending attempts of the requester are expired in the same
// transaction (supersede-then-insert); issuance never rejects because a
// pending attempt exists. Banned requesters are refused.
func (s *VerificationService) Issue(ctx context.Context, requesterID int64, nickname string) (*domain.VerificationAttempt, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrEmptyNickname
	}
	if err := s.ensureNotBanned(ctx, requesterID); err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.CodeTTL)
	var attempt *domain.VerificationAttempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		superseded, err := repo.ExpirePendingForRequester(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		if superseded > 1 {
			// The partial unique index should make this impossible; the
			// engine self-heals by collapsing to the single new row.
			log.Warn().
				Int64("requester_id", requesterID).
				Int64("superseded", superseded).
				Msg("more than one pending verification superseded")
		}
		attempt, err = repo.CreateAttempt(ctx, tx, requesterID, nickname, generateCode(), expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().
		Int64("requester_id", requesterID).
		Str("nickname", nickname).
		Time("expires_at", expiresAt).
		Msg("verification code issued")
	return attempt, nil
}

// ConfirmByBackend applies an authenticated backend confirmation of code for
// externalAccountID. nickname is optional; when supplied it must match the
// stored claim case-insensitively, guarding against codes cross-wired to the
// wrong claim. Retried confirmations of an already-applied code return
// already_verified rather than an error.
func (s *VerificationService) ConfirmByBackend(ctx context.Context, nickname, code string, externalAccountID int64) (CheckResult, error) {
	now := time.Now().UTC()
	var res CheckResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := repo.LatestAttemptByCode(ctx, tx, code)
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Str("code", code).Msg("verification code not found")
			res = CheckResult{Status: StatusNotFound, ClaimedNickname: nickname}
			return nil
		}
		if err != nil {
			return err
		}

		res.ClaimedNickname = attempt.ClaimedNickname
		res.RequesterID = attempt.RequesterID

		switch {
		case attempt.Status == domain.VerificationUsed:
			res.Status = StatusAlreadyVerified
			return nil
		case attempt.Status == domain.VerificationExpired:
			res.Status = StatusExpired
			return nil
		case attempt.ExpiresAt.Before(now):
			res.Status = StatusExpired
			return repo.MarkAttemptExpired(ctx, tx, attempt.ID)
		case nickname != "" && !foldEqual(attempt.ClaimedNickname, nickname):
			log.Warn().
				Str("expected", attempt.ClaimedNickname).
				Str("provided", nickname).
				Msg("verification nickname mismatch")
			res.Status = StatusMismatch
			return nil
		}

		if err := s.applyConfirmation(ctx, tx, attempt, externalAccountID, now); err != nil {
			return err
		}
		res.Status = StatusVerified
		return nil
	})
	return res, err
}

// ConfirmBySelfPoll re-derives the requester's latest attempt, checks its
// TTL, resolves the claimed profile, and looks for the code in the profile's
// description and status text. A miss leaves the attempt pending so the
// requester can edit their profile and poll again.
func (s *VerificationService) ConfirmBySelfPoll(ctx context.Context, requesterID int64) (CheckResult, error) {
	now := time.Now().UTC()

	attempt, err := repo.LatestAttemptByRequester(ctx, s.DB, requesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckResult{Status: StatusNotFound, RequesterID: requesterID}, nil
	}
	if err != nil {
		return CheckResult{}, err
	}

	res := CheckResult{ClaimedNickname: attempt.ClaimedNickname, RequesterID: requesterID}

	switch {
	case attempt.Status == domain.VerificationUsed:
		res.Status = StatusAlreadyVerified
		return res, nil
	case attempt.Status == domain.VerificationExpired:
		res.Status = StatusExpired
		return res, nil
	case attempt.ExpiresAt.Before(now):
		res.Status = StatusExpired
		return res, repo.MarkAttemptExpired(ctx, s.DB, attempt.ID)
	}

	profile, err := s.Resolver.Resolve(ctx, attempt.ClaimedNickname)
	switch {
	case errors.Is(err, roblox.ErrNotFound):
		res.Status = StatusNotFound
		return res, nil
	case errors.Is(err, roblox.ErrUnavailable):
		res.Status = StatusUnavailable
		return res, nil
	case err != nil:
		return res, err
	}

	if !roblox.ContainsCode(profile.Description+" "+profile.Status, attempt.Code) {
		res.Status = StatusPending
		return res, nil
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyConfirmation(ctx, tx, attempt, profile.UserID, now)
	})
	if errors.Is(err, repo.ErrNotFound) {
		// Lost the race: the attempt left pending while we resolved. Re-read
		// to tell a concurrent confirmation apart from a concurrent re-issue
		// superseding this attempt.
		current, rerr := repo.GetAttempt(ctx, s.DB, attempt.ID)
		if rerr == nil && current.Status == domain.VerificationExpired {
			res.Status = StatusExpired
			return res, nil
		}
		res.Status = StatusAlreadyVerified
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Status = StatusVerified
	return res, nil
}

// Expire force-transitions a specific pending attempt to expired. Missing or
// already-terminal attempts are a no-op.
func (s *VerificationService) Expire(ctx context.Context, attemptID uint) error {
	return repo.MarkAttemptExpired(ctx, s.DB, attemptID)
}

// LatestAttempt returns the requester's most recent attempt regardless of
// status, or repo.ErrNotFound.
func (s *VerificationService) LatestAttempt(ctx context.Context, requesterID int64) (*domain.VerificationAttempt, error) {
	return repo.LatestAttemptByRequester(ctx, s.DB, requesterID)
}

// StatusForNickname reports the verification state of the latest attempt
// claiming nickname (case-insensitive). Pending attempts past their TTL are
// reported expired without mutating the row; expiry is applied lazily at
// confirmation time.
func (s *VerificationService) StatusForNickname(ctx context.Context, nickname string) (StatusResult, error) {
	attempt, err := repo.LatestAttemptByNickname(ctx, s.DB, nickname)
	if errors.Is(err, repo.ErrNotFound) {
		return StatusResult{Status: StatusNotFound, ClaimedNickname: nickname}, nil
	}
	if err != nil {
		return StatusResult{}, err
	}

	out := StatusResult{ClaimedNickname: attempt.ClaimedNickname}
	switch {
	case attempt.Status == domain.VerificationUsed:
		out.Status = StatusVerified
	case attempt.Status == domain.VerificationPending && attempt.ExpiresAt.After(time.Now().UTC()):
		out.Status = StatusPending
	default:
		out.Status = StatusExpired
	}
	return out, nil
}

// applyConfirmation is the single terminal transition shared by both
// confirmation paths: flip the attempt to used (tombstoning its expiry) and
// bind the external account to the requester's user row. Returns
// repo.ErrNotFound when the attempt was no longer pending, which callers
// treat as a lost race against another confirmation.
func (s *VerificationService) applyConfirmation(ctx context.Context, tx *gorm.DB, attempt *domain.VerificationAttempt, externalAccountID int64, now time.Time) error {
	if err := repo.MarkAttemptUsed(ctx, tx, attempt.ID, now); err != nil {
		return err
	}

	if existing, err := repo.GetUserByRequesterID(ctx, tx, attempt.RequesterID); err == nil &&
		existing.ExternalAccountID != nil && *existing.ExternalAccountID != externalAccountID {
		// Re-verification replaces the binding; pending product clarification
		// this stays allowed but is logged prominently.
		log.Warn().
			Int64("requester_id", attempt.RequesterID).
			Int64("old_external_id", *existing.ExternalAccountID).
			Int64("new_external_id", externalAccountID).
			Msg("re-verification replaces linked external account")
	}

	if _, err := repo.UpsertVerifiedUser(ctx, tx, attempt.RequesterID, externalAccountID, now); err != nil {
		return err
	}
	log.Info().
		Int64("requester_id", attempt.RequesterID).
		Int64("external_account_id", externalAccountID).
		Msg("verification completed")
	return nil
}

// ensureNotBanned refuses banned requesters. Unknown requesters pass; a user
// row is only created on successful verification. Known requesters get their
// last_active_at bumped on the way through.
func (s *VerificationService) ensureNotBanned(ctx context.Context, requesterID int64) error {
	u, err := repo.GetUserByRequesterID(ctx, s.DB, requesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if u.IsBanned {
		return ErrBanned
	}
	if err := repo.TouchUser(ctx, s.DB, requesterID, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Int64("requester_id", requesterID).Msg("touch last_active failed")
	}
	return nil
}

// generateCode returns a short human-typable code: "BB-" plus six uppercase
// hex characters.
func generateCode() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return "BB-" + strings.ToUpper(hex.EncodeToString(buf))
}

// foldEqual compares two nicknames under Unicode case folding, trimming
// surrounding whitespace first.
func foldEqual(a, b string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}
