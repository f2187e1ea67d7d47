package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bigbob/go-verify-backend/internal/domain"
	"github.com/bigbob/go-verify-backend/internal/repo"
	"github.com/bigbob/go-verify-backend/internal/roblox"
)

// newServiceDB opens a throwaway SQLite database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := repo.EnsureIndexes(db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return db
}

// fakeResolver returns a canned profile or error. onResolve, when set, runs
// before returning so tests can interleave a concurrent state change between
// the attempt read and the terminal transition.
type fakeResolver struct {
	profile   *roblox.Profile
	err       error
	onResolve func()
}

func (f *fakeResolver) Resolve(ctx context.Context, nickname string) (*roblox.Profile, error) {
	if f.onResolve != nil {
		f.onResolve()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

func TestIssue_GeneratesCodeAndSupersedes(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	first, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if !strings.HasPrefix(first.Code, "BB-") || len(first.Code) != len("BB-")+6 {
		t.Fatalf("code format: %q", first.Code)
	}
	if first.Status != domain.VerificationPending {
		t.Fatalf("status = %s", first.Status)
	}

	// A second issuance supersedes the first instead of rejecting.
	second, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if second.Code == first.Code {
		t.Fatal("second issuance reused the code")
	}

	n, err := repo.CountPendingForRequester(ctx, db, 1)
	if err != nil || n != 1 {
		t.Fatalf("pending count = %d, err = %v, want 1", n, err)
	}
	old, err := repo.LatestAttemptByCode(ctx, db, first.Code)
	if err != nil || old.Status != domain.VerificationExpired {
		t.Fatalf("superseded attempt: %+v err=%v", old, err)
	}
}

func TestIssue_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	if _, err := svc.Issue(ctx, 1, "   "); !errors.Is(err, ErrEmptyNickname) {
		t.Fatalf("blank nickname: err = %v", err)
	}

	reason := "abuse"
	banned := &domain.User{RequesterID: 2, IsBanned: true, BanReason: &reason}
	if err := db.Create(banned).Error; err != nil {
		t.Fatalf("seed banned user: %v", err)
	}
	if _, err := svc.Issue(ctx, 2, "whoever"); !errors.Is(err, ErrBanned) {
		t.Fatalf("banned requester: err = %v", err)
	}
}

func TestConfirmByBackend_Lifecycle(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, err := svc.ConfirmByBackend(ctx, "coolplayer99", attempt.Code, 555001)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Status != StatusVerified || res.RequesterID != 1 {
		t.Fatalf("confirm result: %+v", res)
	}

	u, err := repo.GetUserByRequesterID(ctx, db, 1)
	if err != nil || u.ExternalAccountID == nil || *u.ExternalAccountID != 555001 {
		t.Fatalf("user binding: %+v err=%v", u, err)
	}

	// Retried confirmation of the same code is a clean already_verified.
	res, err = svc.ConfirmByBackend(ctx, "", attempt.Code, 555001)
	if err != nil || res.Status != StatusAlreadyVerified {
		t.Fatalf("replay: %+v err=%v", res, err)
	}
}

func TestConfirmByBackend_UnknownAndMismatch(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	res, err := svc.ConfirmByBackend(ctx, "whoever", "BB-FFFFFF", 1)
	if err != nil || res.Status != StatusNotFound {
		t.Fatalf("unknown code: %+v err=%v", res, err)
	}

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res, err = svc.ConfirmByBackend(ctx, "SomeoneElse", attempt.Code, 1)
	if err != nil || res.Status != StatusMismatch {
		t.Fatalf("mismatch: %+v err=%v", res, err)
	}

	// The mismatch left the attempt pending; the right nickname still works.
	res, err = svc.ConfirmByBackend(ctx, "CoolPlayer99", attempt.Code, 1)
	if err != nil || res.Status != StatusVerified {
		t.Fatalf("after mismatch: %+v err=%v", res, err)
	}
}

func TestConfirmByBackend_SupersededCodeReportsExpired(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	first, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	// The superseded code is distinguishable from a code that never existed.
	res, err := svc.ConfirmByBackend(ctx, "", first.Code, 555001)
	if err != nil || res.Status != StatusExpired {
		t.Fatalf("old code: %+v err=%v", res, err)
	}

	res, err = svc.ConfirmByBackend(ctx, "", second.Code, 555001)
	if err != nil || res.Status != StatusVerified {
		t.Fatalf("current code: %+v err=%v", res, err)
	}
}

func TestConfirmByBackend_TTLExpiryAppliedLazily(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	svc.CodeTTL = -time.Minute // already past at issuance
	ctx := context.Background()

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, err := svc.ConfirmByBackend(ctx, "", attempt.Code, 555001)
	if err != nil || res.Status != StatusExpired {
		t.Fatalf("expired confirm: %+v err=%v", res, err)
	}

	// The row was flipped to expired on the way out.
	got, err := repo.LatestAttemptByCode(ctx, db, attempt.Code)
	if err != nil || got.Status != domain.VerificationExpired {
		t.Fatalf("row after lazy expiry: %+v err=%v", got, err)
	}
}

func TestConfirmBySelfPoll(t *testing.T) {
	db := newServiceDB(t)
	resolver := &fakeResolver{profile: &roblox.Profile{UserID: 555001}}
	svc := NewVerificationService(db, resolver)
	ctx := context.Background()

	res, err := svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusNotFound {
		t.Fatalf("no attempt: %+v err=%v", res, err)
	}

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Code not on the profile yet: stays pending so the user can retry.
	resolver.profile.Description = "nothing here"
	res, err = svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusPending {
		t.Fatalf("code absent: %+v err=%v", res, err)
	}

	// Code appears in the status text.
	resolver.profile.Status = "verify " + attempt.Code
	res, err = svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusVerified {
		t.Fatalf("code present: %+v err=%v", res, err)
	}

	u, err := repo.GetUserByRequesterID(ctx, db, 1)
	if err != nil || u.ExternalAccountID == nil || *u.ExternalAccountID != 555001 {
		t.Fatalf("user binding: %+v err=%v", u, err)
	}

	// Another poll on the used attempt is already_verified.
	res, err = svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusAlreadyVerified {
		t.Fatalf("replay: %+v err=%v", res, err)
	}
}

func TestConfirmBySelfPoll_ResolverFailures(t *testing.T) {
	db := newServiceDB(t)
	resolver := &fakeResolver{}
	svc := NewVerificationService(db, resolver)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, 1, "Ghost"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	resolver.err = roblox.ErrNotFound
	res, err := svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusNotFound {
		t.Fatalf("unknown nickname: %+v err=%v", res, err)
	}

	resolver.err = roblox.ErrUnavailable
	res, err = svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusUnavailable {
		t.Fatalf("upstream down: %+v err=%v", res, err)
	}

	// The attempt survived both failures.
	attempt, err := svc.LatestAttempt(ctx, 1)
	if err != nil || attempt.Status != domain.VerificationPending {
		t.Fatalf("attempt after failures: %+v err=%v", attempt, err)
	}
}

func TestConfirmBySelfPoll_LostRaceAgainstSupersede(t *testing.T) {
	db := newServiceDB(t)
	resolver := &fakeResolver{}
	svc := NewVerificationService(db, resolver)
	ctx := context.Background()

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	resolver.profile = &roblox.Profile{UserID: 555001, Status: "verify " + attempt.Code}

	// A re-issue supersedes the attempt while the poll is out resolving the
	// profile; the poll must report expired, not already_verified.
	resolver.onResolve = func() {
		if err := repo.MarkAttemptExpired(ctx, db, attempt.ID); err != nil {
			t.Fatalf("supersede mid-poll: %v", err)
		}
	}
	res, err := svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusExpired {
		t.Fatalf("superseded mid-poll: %+v err=%v", res, err)
	}
}

func TestConfirmBySelfPoll_LostRaceAgainstBackendConfirm(t *testing.T) {
	db := newServiceDB(t)
	resolver := &fakeResolver{}
	svc := NewVerificationService(db, resolver)
	ctx := context.Background()

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	resolver.profile = &roblox.Profile{UserID: 555001, Status: "verify " + attempt.Code}

	resolver.onResolve = func() {
		if _, err := svc.ConfirmByBackend(ctx, "", attempt.Code, 555001); err != nil {
			t.Fatalf("backend confirm mid-poll: %v", err)
		}
	}
	res, err := svc.ConfirmBySelfPoll(ctx, 1)
	if err != nil || res.Status != StatusAlreadyVerified {
		t.Fatalf("confirmed mid-poll: %+v err=%v", res, err)
	}
}

func TestExpire_ForcedAndIdempotent(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Expire(ctx, attempt.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if err := svc.Expire(ctx, attempt.ID); err != nil {
		t.Fatalf("re-expire: %v", err)
	}

	res, err := svc.ConfirmByBackend(ctx, "", attempt.Code, 555001)
	if err != nil || res.Status != StatusExpired {
		t.Fatalf("confirm after forced expiry: %+v err=%v", res, err)
	}
}

func TestStatusForNickname(t *testing.T) {
	db := newServiceDB(t)
	svc := NewVerificationService(db, &fakeResolver{})
	ctx := context.Background()

	out, err := svc.StatusForNickname(ctx, "Nobody")
	if err != nil || out.Status != StatusNotFound {
		t.Fatalf("unknown: %+v err=%v", out, err)
	}

	attempt, err := svc.Issue(ctx, 1, "CoolPlayer99")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	out, err = svc.StatusForNickname(ctx, "COOLPLAYER99")
	if err != nil || out.Status != StatusPending {
		t.Fatalf("pending: %+v err=%v", out, err)
	}

	if _, err := svc.ConfirmByBackend(ctx, "", attempt.Code, 555001); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	out, err = svc.StatusForNickname(ctx, "coolplayer99")
	if err != nil || out.Status != StatusVerified {
		t.Fatalf("verified: %+v err=%v", out, err)
	}
}

func TestFoldEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"CoolPlayer99", "coolplayer99", true},
		{"  spaced  ", "spaced", true},
		{"Straße", "STRASSE", true},
		{"alice", "bob", false},
	}
	for _, c := range cases {
		if got := foldEqual(c.a, c.b); got != c.want {
			t.Errorf("foldEqual(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
