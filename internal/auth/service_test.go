package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

type stubSessions struct {
	tokens   map[string]string
	revoked  []string
	failNext error
	counter  int
}

func newStubSessions() *stubSessions {
	return &stubSessions{tokens: map[string]string{}}
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return "", err
	}
	s.counter++
	token := "refresh-" + accessID
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	newID := session.NewAccessID()
	token, err := s.Generate(ctx, newID)
	return newID, token, err
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	delete(s.tokens, accessID)
	s.revoked = append(s.revoked, accessID)
	return nil
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15}
}

func newTestService(t *testing.T, sessions *stubSessions, now time.Time) Service {
	t.Helper()
	hash, err := security.HashPassword("hunter22", config.PasswordConfig{
		ArgonMemoryKB: 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32,
	})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Admin:          config.AdminConfig{Email: "Admin@Example.com", PasswordHash: hash},
		JWTConfig:      testJWT(),
		SessionManager: sessions,
		Clock:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoginIssuesTokens(t *testing.T) {
	sessions := newStubSessions()
	now := time.Now().UTC()
	svc := newTestService(t, sessions, now)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  admin@example.COM ", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", resp)
	}
	if !resp.ExpiresAt.After(now) {
		t.Fatalf("expected expiry after now, got %s", resp.ExpiresAt)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Role != enums.ActorRoleAdmin {
		t.Fatalf("expected admin role, got %s", claims.Role)
	}
	if claims.Subject != "admin@example.com" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if sessions.tokens[claims.ID] != resp.RefreshToken {
		t.Fatalf("refresh token not stored under jti")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t, newStubSessions(), time.Now())

	cases := []LoginRequest{
		{Email: "admin@example.com", Password: "wrong"},
		{Email: "other@example.com", Password: "hunter22"},
		{Email: "", Password: ""},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %+v, got %v", req, err)
		}
	}
}

func TestLoginSessionStoreFailure(t *testing.T) {
	sessions := newStubSessions()
	sessions.failNext = errors.New("redis down")
	svc := newTestService(t, sessions, time.Now())

	_, err := svc.Login(context.Background(), LoginRequest{Email: "admin@example.com", Password: "hunter22"})
	if pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	sessions := newStubSessions()
	svc := newTestService(t, sessions, time.Now().UTC())

	login, err := svc.Login(context.Background(), LoginRequest{Email: "admin@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	refreshed, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	if _, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken); pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected reused refresh token to fail, got %v", err)
	}
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	sessions := newStubSessions()
	past := time.Now().UTC().Add(-2 * time.Hour)
	svc := newTestService(t, sessions, past)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "admin@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken); err != nil {
		t.Fatalf("refresh with expired access token: %v", err)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc := newTestService(t, newStubSessions(), time.Now())
	_, err := svc.Refresh(context.Background(), "not-a-jwt", "whatever")
	if pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := newStubSessions()
	svc := newTestService(t, sessions, time.Now().UTC())

	login, err := svc.Login(context.Background(), LoginRequest{Email: "admin@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), login.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 {
		t.Fatalf("expected one revoked session, got %d", len(sessions.revoked))
	}
	if _, err := svc.Refresh(context.Background(), login.AccessToken, login.RefreshToken); pkgerrors.CodeOf(err) != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing admin email")
	}
	if _, err := NewService(ServiceParams{Admin: config.AdminConfig{Email: "a@b.c"}}); err == nil {
		t.Fatal("expected error for missing hash")
	}
	if _, err := NewService(ServiceParams{Admin: config.AdminConfig{Email: "a@b.c", PasswordHash: "x"}}); err == nil {
		t.Fatal("expected error for missing session manager")
	}
}
