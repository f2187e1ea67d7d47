package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigbob/go-verify-backend/internal/domain"
)

func TestGetActiveAdmin_SkipsRevoked(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	a := &domain.Admin{RequesterID: 10, Role: domain.RoleMain}
	if err := CreateAdmin(ctx, db, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := GetActiveAdmin(ctx, db, 10)
	if err != nil || got.Role != domain.RoleMain {
		t.Fatalf("active admin: %+v err=%v", got, err)
	}

	now := time.Now().UTC()
	a.RevokedAt = &now
	if err := db.Save(a).Error; err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := GetActiveAdmin(ctx, db, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("revoked admin visible: err = %v, want ErrNotFound", err)
	}
}

func TestCreateAdmin_DuplicateRequester(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	if err := CreateAdmin(ctx, db, &domain.Admin{RequesterID: 11, Role: domain.RoleSupport}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := CreateAdmin(ctx, db, &domain.Admin{RequesterID: 11, Role: domain.RoleManager})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second: err = %v, want ErrDuplicate", err)
	}
}

func TestListActionLogs_NewestFirstWithDefaultLimit(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if err := AppendActionLog(ctx, db, nil, "test_action", "", ""); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	out, err := ListActionLogs(ctx, db, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 10 {
		t.Fatalf("default limit: got %d rows, want 10", len(out))
	}
	// Newest first: ids descend.
	for i := 1; i < len(out); i++ {
		if out[i].ActionID > out[i-1].ActionID {
			t.Fatalf("rows not newest-first: %d before %d", out[i-1].ActionID, out[i].ActionID)
		}
	}
}

func TestCountRewardedSince_WindowAndStatus(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []domain.Referral{
		{ReferrerID: 1, ReferredID: 2, Status: domain.ReferralRewarded, CreatedAt: now.Add(-1 * time.Hour)},
		{ReferrerID: 1, ReferredID: 3, Status: domain.ReferralRewarded, CreatedAt: now.Add(-30 * time.Hour)}, // outside window
		{ReferrerID: 1, ReferredID: 4, Status: domain.ReferralPending, CreatedAt: now.Add(-1 * time.Hour)},   // not rewarded
		{ReferrerID: 2, ReferredID: 5, Status: domain.ReferralRewarded, CreatedAt: now.Add(-1 * time.Hour)},  // other referrer
	}
	for i := range rows {
		if err := CreateReferral(ctx, db, &rows[i]); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	n, err := CountRewardedSince(ctx, db, 1, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v, want 1", n, err)
	}
}
