package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/repo"
	"github.com/bigbob/go-verify-backend/internal/services"
	"github.com/bigbob/go-verify-backend/internal/session"
)

func pendingAttempt(requesterID int64, nickname string) *domain.VerificationAttempt {
	return &domain.VerificationAttempt{
		ID:              1,
		RequesterID:     requesterID,
		ClaimedNickname: nickname,
		Code:            "BB-77FF",
		Status:          domain.VerificationPending,
		ExpiresAt:       time.Now().UTC().Add(10 * time.Minute),
		CreatedAt:       time.Now().UTC(),
	}
}

func TestIssueVerification(t *testing.T) {
	env := newTestEnv(t, "")
	env.verif.issue = func(ctx context.Context, requesterID int64, nickname string) (*domain.VerificationAttempt, error) {
		return pendingAttempt(requesterID, nickname), nil
	}

	w := env.do(t, http.MethodPost, "/verifications", map[string]any{"nickname": "CoolPlayer99"}, asUser("7"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["code"] != "BB-77FF" || body["claimed_nickname"] != "CoolPlayer99" || body["status"] != "pending" {
		t.Fatalf("body = %v", body)
	}

	// The dialog advanced to awaiting_code with the nickname captured.
	sess := env.sessions.Get(7)
	if sess.State != session.StateAwaitingCode || sess.Nickname != "CoolPlayer99" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestIssueVerification_Errors(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/verifications", map[string]any{"nickname": "  "}, asUser("7"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank nickname: status = %d, want 400", w.Code)
	}

	env.verif.issue = func(ctx context.Context, requesterID int64, nickname string) (*domain.VerificationAttempt, error) {
		return nil, services.ErrBanned
	}
	w = env.do(t, http.MethodPost, "/verifications", map[string]any{"nickname": "x"}, asUser("7"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("banned: status = %d, want 403", w.Code)
	}
	if env.sessions.Get(7).State != session.StateIdle {
		t.Fatal("failed issuance advanced the dialog")
	}
}

func TestPollVerification_ResetsSessionWhenDone(t *testing.T) {
	env := newTestEnv(t, "")
	env.sessions.Begin(7)
	env.sessions.SetNickname(7, "CoolPlayer99")

	env.verif.confirmSelfPoll = func(ctx context.Context, requesterID int64) (services.CheckResult, error) {
		return services.CheckResult{Status: services.StatusPending, RequesterID: requesterID}, nil
	}
	w := env.do(t, http.MethodPost, "/verifications/poll", nil, asUser("7"))
	if w.Code != http.StatusOK {
		t.Fatalf("pending poll: status = %d", w.Code)
	}
	if env.sessions.Get(7).State != session.StateAwaitingCode {
		t.Fatal("pending poll reset the dialog")
	}

	env.verif.confirmSelfPoll = func(ctx context.Context, requesterID int64) (services.CheckResult, error) {
		return services.CheckResult{Status: services.StatusVerified, RequesterID: requesterID}, nil
	}
	w = env.do(t, http.MethodPost, "/verifications/poll", nil, asUser("7"))
	if w.Code != http.StatusOK {
		t.Fatalf("verified poll: status = %d", w.Code)
	}
	if body := decode(t, w); body["status"] != "verified" {
		t.Fatalf("body = %v", body)
	}
	if env.sessions.Get(7).State != session.StateIdle {
		t.Fatal("verified poll did not reset the dialog")
	}
}

func TestLatestVerification(t *testing.T) {
	env := newTestEnv(t, "")
	env.verif.latest = func(ctx context.Context, requesterID int64) (*domain.VerificationAttempt, error) {
		return nil, repo.ErrNotFound
	}

	w := env.do(t, http.MethodGet, "/verifications/latest", nil, asUser("7"))
	if w.Code != http.StatusNotFound {
		t.Fatalf("no attempt: status = %d, want 404", w.Code)
	}

	env.verif.latest = func(ctx context.Context, requesterID int64) (*domain.VerificationAttempt, error) {
		return pendingAttempt(requesterID, "CoolPlayer99"), nil
	}
	w = env.do(t, http.MethodGet, "/verifications/latest", nil, asUser("7"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["code"] != "BB-77FF" {
		t.Fatalf("body = %v", body)
	}
}

func TestDialogState(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/session", nil, asUser("7"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["state"] != "idle" {
		t.Fatalf("body = %v", body)
	}

	env.sessions.Begin(7)
	w = env.do(t, http.MethodGet, "/session", nil, asUser("7"))
	if body := decode(t, w); body["state"] != "awaiting_nickname" {
		t.Fatalf("body = %v", body)
	}
}
