package iam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubRepo struct {
	mu         sync.Mutex
	identities map[uuid.UUID]*Identity
	byEmail    map[string]uuid.UUID
	refresh    map[string]*RefreshToken
	codes      map[uuid.UUID]*VerificationCode
	revokedJTI map[uuid.UUID]bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		identities: make(map[uuid.UUID]*Identity),
		byEmail:    make(map[string]uuid.UUID),
		refresh:    make(map[string]*RefreshToken),
		codes:      make(map[uuid.UUID]*VerificationCode),
		revokedJTI: make(map[uuid.UUID]bool),
	}
}

func (r *stubRepo) CreateIdentity(_ context.Context, ident *Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[ident.Email]; ok {
		return ErrEmailConflict
	}
	ident.ID = uuid.New()
	ident.CreatedAt = time.Now().UTC()
	ident.UpdatedAt = ident.CreatedAt
	cp := *ident
	r.identities[ident.ID] = &cp
	r.byEmail[ident.Email] = ident.ID
	return nil
}

func (r *stubRepo) GetIdentityByEmail(_ context.Context, email string) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *r.identities[id]
	return &cp, nil
}

func (r *stubRepo) GetIdentityByID(_ context.Context, id uuid.UUID) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *ident
	return &cp, nil
}

func (r *stubRepo) SetEmailVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return ErrAccountNotFound
	}
	ident.EmailVerified = true
	return nil
}

func (r *stubRepo) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return ErrAccountNotFound
	}
	ident.PasswordHash = hash
	return nil
}

func (r *stubRepo) SoftDeleteIdentity(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident, ok := r.identities[id]
	if !ok {
		return ErrAccountNotFound
	}
	delete(r.byEmail, ident.Email)
	delete(r.identities, id)
	return nil
}

func (r *stubRepo) CreateRefreshToken(_ context.Context, rt *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt.ID = uuid.New()
	rt.CreatedAt = time.Now().UTC()
	cp := *rt
	r.refresh[rt.TokenHash] = &cp
	return nil
}

func (r *stubRepo) GetRefreshTokenByHash(_ context.Context, hash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.refresh[hash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *stubRepo) MarkRefreshTokenRotated(_ context.Context, id, replacedBy uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.refresh {
		if rt.ID == id {
			rb := replacedBy
			rt.ReplacedBy = &rb
			return nil
		}
	}
	return ErrTokenNotFound
}

func (r *stubRepo) RevokeRefreshTokensForIdentity(_ context.Context, identityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, rt := range r.refresh {
		if rt.IdentityID == identityID && rt.RevokedAt == nil {
			t := now
			rt.RevokedAt = &t
		}
	}
	return nil
}

func (r *stubRepo) CreateVerificationCode(_ context.Context, vc *VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	vc.ID = uuid.New()
	vc.CreatedAt = time.Now().UTC()
	cp := *vc
	r.codes[vc.IdentityID] = &cp
	return nil
}

func (r *stubRepo) GetActiveVerificationCode(_ context.Context, identityID uuid.UUID) (*VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vc, ok := r.codes[identityID]
	if !ok || vc.UsedAt != nil {
		return nil, ErrInvalidVerificationCode
	}
	cp := *vc
	return &cp, nil
}

func (r *stubRepo) MarkVerificationCodeUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, vc := range r.codes {
		if vc.ID == id {
			now := time.Now().UTC()
			vc.UsedAt = &now
			return nil
		}
	}
	return ErrInvalidVerificationCode
}

func (r *stubRepo) RevokeAccessToken(_ context.Context, jti uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revokedJTI[jti] = true
	return nil
}

func (r *stubRepo) IsAccessTokenRevoked(_ context.Context, jti uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokedJTI[jti], nil
}

type stubMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *stubMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to)
	return nil
}

type stubGoogle struct {
	claims *GoogleClaims
	err    error
}

func (g *stubGoogle) VerifyIDToken(context.Context, string) (*GoogleClaims, error) {
	return g.claims, g.err
}

func testConfig() Config {
	return Config{
		ServiceName:    "aurora-test",
		TokenSecret:    "test-secret-at-least-32-bytes-long!!",
		AccessTTL:      time.Hour,
		RefreshTTL:     30 * 24 * time.Hour,
		CodeTTL:        time.Hour,
		CodeLength:     6,
		MinPasswordLen: 8,
	}
}

func newTestService(repo *stubRepo, google googleTokenVerifier) (*AuthService, *stubMailer) {
	mailer := &stubMailer{}
	if google == nil {
		google = &stubGoogle{err: ErrInvalidOAuthToken}
	}
	return NewAuthService(repo, mailer, google, testConfig(), zap.NewNop()), mailer
}

func registerVerified(t *testing.T, svc *AuthService, repo *stubRepo, email, password string) *Identity {
	t.Helper()
	ident, err := svc.Register(context.Background(), email, password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.SetEmailVerified(context.Background(), ident.ID); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	return ident
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newStubRepo()
	svc, mailer := newTestService(repo, nil)
	ctx := context.Background()

	ident, err := svc.Register(ctx, "alice@example.com", "Str0ngPass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ident.AuthType != AuthTypeEmail {
		t.Errorf("auth type = %q, want %q", ident.AuthType, AuthTypeEmail)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "alice@example.com" {
		t.Errorf("verification mail recipients = %v", mailer.sent)
	}

	// Unverified identities cannot log in.
	if _, err := svc.Login(ctx, "alice@example.com", "Str0ngPass", AuthTypeEmail); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("login before verification: err = %v, want ErrEmailNotVerified", err)
	}

	if err := repo.SetEmailVerified(ctx, ident.ID); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	result, err := svc.Login(ctx, "alice@example.com", "Str0ngPass", AuthTypeEmail)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Error("expected both tokens to be issued")
	}
	if result.Identity.ID != ident.ID {
		t.Errorf("identity id = %s, want %s", result.Identity.ID, ident.ID)
	}
}

func TestRegisterRejectsWeakPasswords(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	for _, pw := range []string{"short1", "onlyletters", "12345678"} {
		if _, err := svc.Register(ctx, "bob@example.com", pw); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("register(%q): err = %v, want ErrWeakPassword", pw, err)
		}
	}
}

func TestRegisterEmailConflict(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dup@example.com", "Str0ngPass"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "0therPass99"); !errors.Is(err, ErrEmailConflict) {
		t.Fatalf("second register: err = %v, want ErrEmailConflict", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	registerVerified(t, svc, repo, "carol@example.com", "Str0ngPass")

	if _, err := svc.Login(context.Background(), "carol@example.com", "WrongPass1", AuthTypeEmail); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmailMapsToInvalidCredentials(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)

	if _, err := svc.Login(context.Background(), "nobody@example.com", "Str0ngPass", AuthTypeEmail); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestGoogleLoginProvisionsIdentity(t *testing.T) {
	repo := newStubRepo()
	google := &stubGoogle{claims: &GoogleClaims{
		Subject:       "google-sub-1",
		Email:         "dora@example.com",
		EmailVerified: "true",
	}}
	svc, _ := newTestService(repo, google)
	ctx := context.Background()

	result, err := svc.Login(ctx, "", "an-id-token", AuthTypeGoogle)
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if result.Identity.AuthType != AuthTypeGoogle {
		t.Errorf("auth type = %q, want %q", result.Identity.AuthType, AuthTypeGoogle)
	}
	if !result.Identity.EmailVerified {
		t.Error("google identity should be created verified")
	}

	// Second login reuses the same identity.
	again, err := svc.Login(ctx, "", "an-id-token", AuthTypeGoogle)
	if err != nil {
		t.Fatalf("second google login: %v", err)
	}
	if again.Identity.ID != result.Identity.ID {
		t.Errorf("second login identity = %s, want %s", again.Identity.ID, result.Identity.ID)
	}
}

func TestGoogleLoginAuthTypeMismatch(t *testing.T) {
	repo := newStubRepo()
	google := &stubGoogle{claims: &GoogleClaims{
		Subject:       "google-sub-2",
		Email:         "eve@example.com",
		EmailVerified: "true",
	}}
	svc, _ := newTestService(repo, google)
	registerVerified(t, svc, repo, "eve@example.com", "Str0ngPass")

	if _, err := svc.Login(context.Background(), "", "an-id-token", AuthTypeGoogle); !errors.Is(err, ErrAuthTypeMismatch) {
		t.Fatalf("err = %v, want ErrAuthTypeMismatch", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	registerVerified(t, svc, repo, "frank@example.com", "Str0ngPass")
	login, err := svc.Login(ctx, "frank@example.com", "Str0ngPass", AuthTypeEmail)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.Tokens.RefreshToken == login.Tokens.RefreshToken {
		t.Error("refresh should issue a new refresh token")
	}

	// Reusing the retired token revokes the whole family.
	if _, err := svc.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("reuse: err = %v, want ErrTokenReuseDetected", err)
	}
	if _, err := svc.Refresh(ctx, rotated.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("post-reuse refresh: err = %v, want ErrTokenRevoked", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)

	if _, err := svc.Refresh(context.Background(), "never-issued"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
}

func TestLogoutRevokesAccessAndRefresh(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	registerVerified(t, svc, repo, "gina@example.com", "Str0ngPass")
	login, err := svc.Login(ctx, "gina@example.com", "Str0ngPass", AuthTypeEmail)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Authenticate(ctx, login.Tokens.AccessToken); err != nil {
		t.Fatalf("authenticate before logout: %v", err)
	}
	if err := svc.Logout(ctx, login.Tokens.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, login.Tokens.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("authenticate after logout: err = %v, want ErrTokenRevoked", err)
	}
	if _, err := svc.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("refresh after logout: err = %v, want ErrTokenRevoked", err)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	ident, err := svc.Register(ctx, "hank@example.com", "Str0ngPass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	code := repo.codes[ident.ID].Code

	if err := svc.VerifyEmail(ctx, ident.ID, "000000"); !errors.Is(err, ErrInvalidVerificationCode) {
		t.Fatalf("wrong code: err = %v, want ErrInvalidVerificationCode", err)
	}
	if err := svc.VerifyEmail(ctx, ident.ID, code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	got, err := repo.GetIdentityByID(ctx, ident.ID)
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if !got.EmailVerified {
		t.Error("identity should be verified")
	}
	// The code is single-use.
	if err := svc.VerifyEmail(ctx, ident.ID, code); !errors.Is(err, ErrInvalidVerificationCode) {
		t.Fatalf("second verify: err = %v, want ErrInvalidVerificationCode", err)
	}
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	ident, err := svc.Register(ctx, "iris@example.com", "Str0ngPass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	vc := repo.codes[ident.ID]
	vc.ExpiresAt = time.Now().Add(-time.Minute)

	if err := svc.VerifyEmail(ctx, ident.ID, vc.Code); !errors.Is(err, ErrVerificationCodeExpired) {
		t.Fatalf("err = %v, want ErrVerificationCodeExpired", err)
	}
}

func TestResendVerification(t *testing.T) {
	repo := newStubRepo()
	svc, mailer := newTestService(repo, nil)
	ctx := context.Background()

	if err := svc.ResendVerification(ctx, "missing@example.com"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("unknown email: err = %v, want ErrAccountNotFound", err)
	}

	ident, err := svc.Register(ctx, "jane@example.com", "Str0ngPass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.ResendVerification(ctx, "jane@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Errorf("mails sent = %d, want 2", len(mailer.sent))
	}

	if err := repo.SetEmailVerified(ctx, ident.ID); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	if err := svc.ResendVerification(ctx, "jane@example.com"); !errors.Is(err, ErrEmailAlreadyVerified) {
		t.Fatalf("verified resend: err = %v, want ErrEmailAlreadyVerified", err)
	}
}

func TestChangePassword(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	ident := registerVerified(t, svc, repo, "kyle@example.com", "Str0ngPass")
	login, err := svc.Login(ctx, "kyle@example.com", "Str0ngPass", AuthTypeEmail)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.ChangePassword(ctx, ident.ID, "WrongPass1", "NewPass123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: err = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.ChangePassword(ctx, ident.ID, "Str0ngPass", "weak"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak new password: err = %v, want ErrWeakPassword", err)
	}
	if err := svc.ChangePassword(ctx, ident.ID, "Str0ngPass", "NewPass123"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Login(ctx, "kyle@example.com", "Str0ngPass", AuthTypeEmail); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("login with old password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "kyle@example.com", "NewPass123", AuthTypeEmail); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	// Old sessions die with the old password.
	if _, err := svc.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("old refresh token: err = %v, want ErrTokenRevoked", err)
	}
}

func TestDeleteIdentity(t *testing.T) {
	repo := newStubRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	ident := registerVerified(t, svc, repo, "lena@example.com", "Str0ngPass")

	if err := svc.DeleteIdentity(ctx, ident.ID, "WrongPass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.DeleteIdentity(ctx, ident.ID, "Str0ngPass"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetIdentity(ctx, ident.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("get after delete: err = %v, want ErrAccountNotFound", err)
	}
}
