package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/store/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New(), WithBcryptCost(bcrypt.MinCost))
}

func TestRegisterDefaultsAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, RegisterInput{Name: "Ana Pop", Email: "a@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	u := sess.User
	if u.Role != domain.RoleCompany || u.KYCStatus != domain.KYCPending || u.Badge != domain.BadgeTrial || u.TrustScore != 0 {
		t.Fatalf("unexpected defaults: %+v", u)
	}
	if u.Avatar != "AP" {
		t.Fatalf("unexpected avatar %q", u.Avatar)
	}
	if sess.Token == "" {
		t.Fatal("expected token")
	}

	login, err := svc.Login(ctx, LoginInput{Email: "A@X.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.Token == sess.Token {
		t.Fatal("expected a new token per login")
	}
	for _, tok := range []string{sess.Token, login.Token} {
		got, err := svc.Authenticate(ctx, tok)
		if err != nil || got.ID != u.ID {
			t.Fatalf("Authenticate(%q) = %v, %v", tok, got.ID, err)
		}
	}
}

func TestRegisterRejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "B", Email: "b@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := []struct {
		name string
		in   RegisterInput
		kind error
	}{
		{"missing name", RegisterInput{Email: "c@x.com", Password: "secret1"}, apperr.ErrValidation},
		{"bad email", RegisterInput{Name: "C", Email: "nope", Password: "secret1"}, apperr.ErrValidation},
		{"short password", RegisterInput{Name: "C", Email: "c@x.com", Password: "abc"}, apperr.ErrValidation},
		{"admin role", RegisterInput{Name: "C", Email: "c@x.com", Password: "secret1", Role: "admin"}, apperr.ErrValidation},
		{"unknown role", RegisterInput{Name: "C", Email: "c@x.com", Password: "secret1", Role: "wizard"}, apperr.ErrValidation},
		{"duplicate email", RegisterInput{Name: "B2", Email: "B@x.com", Password: "secret1"}, apperr.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "D", Email: "d@x.com", Password: "secret1", Role: "expert"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "d@x.com", Password: "wrong"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "ghost@x.com", Password: "secret1"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for unknown user, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "d@x.com"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Register(ctx, RegisterInput{Name: "E", Email: "e@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, sess.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected revoked token to fail, got %v", err)
	}
	if err := svc.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("Logout of unknown token: %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	admin := domain.User{Role: domain.RoleAdmin}
	expert := domain.User{Role: domain.RoleExpert}
	if err := Authorize(admin, domain.RoleAdmin); err != nil {
		t.Fatalf("admin should pass: %v", err)
	}
	if err := Authorize(expert, domain.RoleAdmin); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := Authorize(expert, domain.RoleAdmin, domain.RoleExpert); err != nil {
		t.Fatalf("expert in role set should pass: %v", err)
	}
}

func TestKYCAndListUsers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a, _ := svc.Register(ctx, RegisterInput{Name: "F", Email: "f@x.com", Password: "secret1"})
	b, _ := svc.Register(ctx, RegisterInput{Name: "G", Email: "g@x.com", Password: "secret1", Role: "expert"})

	u, err := svc.VerifyKYC(ctx, a.User.ID)
	if err != nil {
		t.Fatalf("VerifyKYC: %v", err)
	}
	if u.KYCStatus != domain.KYCVerified || u.KYCVerifiedAt == nil {
		t.Fatalf("unexpected user after verify: %+v", u)
	}
	if u, err = svc.RejectKYC(ctx, b.User.ID, "blurry document"); err != nil || u.KYCStatus != domain.KYCRejected {
		t.Fatalf("RejectKYC: %+v, %v", u, err)
	}
	if _, err := svc.VerifyKYC(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	experts, err := svc.ListUsers(ctx, "expert", "")
	if err != nil || len(experts) != 1 || experts[0].ID != b.User.ID {
		t.Fatalf("ListUsers(expert) = %v, %v", experts, err)
	}
	verified, err := svc.ListUsers(ctx, "", "verified")
	if err != nil || len(verified) != 1 || verified[0].ID != a.User.ID {
		t.Fatalf("ListUsers(verified) = %v, %v", verified, err)
	}
	if _, err := svc.ListUsers(ctx, "king", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"Ana Pop":       "AP",
		"madonna":       "MA",
		"x":             "X",
		"  ion  ana b ": "IA",
		"":              "",
	}
	for in, want := range cases {
		if got := Initials(in); got != want {
			t.Fatalf("Initials(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestEnsureStaffIsIdempotent(t *testing.T) {
	st := memory.New()
	svc := NewService(st, WithBcryptCost(bcrypt.MinCost))
	ctx := context.Background()
	staff := []StaffAccount{
		{Name: "Platform Admin", Email: "root@ops.test", Password: "correct-horse-battery", Role: domain.RoleAdmin},
		{Name: "Lead Arbitrator", Email: "judge@ops.test", Password: "staple-gun-ledger", Role: domain.RoleArbitrator},
	}

	for i := 0; i < 2; i++ {
		if err := svc.EnsureStaff(ctx, staff); err != nil {
			t.Fatalf("EnsureStaff run %d: %v", i, err)
		}
	}
	sess, err := svc.Login(ctx, LoginInput{Email: "root@ops.test", Password: "correct-horse-battery"})
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	if sess.User.Role != domain.RoleAdmin || sess.User.KYCStatus != domain.KYCVerified || sess.User.ID == "" {
		t.Fatalf("unexpected admin: %+v", sess.User)
	}
	arbs, err := svc.ListUsers(ctx, "arbitrator", "")
	if err != nil || len(arbs) != 1 {
		t.Fatalf("arbitrators = %v, %v", arbs, err)
	}
}

func TestEnsureStaffRejectsWeakOrNonStaffAccounts(t *testing.T) {
	svc := NewService(memory.New(), WithBcryptCost(bcrypt.MinCost))
	ctx := context.Background()

	cases := map[string]StaffAccount{
		"short password": {Name: "Admin", Email: "a@ops.test", Password: "short", Role: domain.RoleAdmin},
		"company role":   {Name: "Acme", Email: "c@ops.test", Password: "long-enough-secret", Role: domain.RoleCompany},
	}
	for name, acct := range cases {
		if err := svc.EnsureStaff(ctx, []StaffAccount{acct}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	users, err := svc.ListUsers(ctx, "", "")
	if err != nil || len(users) != 0 {
		t.Fatalf("expected no users, got %v, %v", users, err)
	}
}
