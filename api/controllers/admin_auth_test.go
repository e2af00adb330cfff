package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubAuthService struct {
	login        auth.LoginRequest
	accessToken  string
	refreshToken string
	loggedOut    string
	err          error
}

func (s *stubAuthService) tokens() *auth.TokenResponse {
	return &auth.TokenResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Unix(1700000000, 0).UTC()}
}

func (s *stubAuthService) Login(_ context.Context, req auth.LoginRequest) (*auth.TokenResponse, error) {
	s.login = req
	if s.err != nil {
		return nil, s.err
	}
	return s.tokens(), nil
}

func (s *stubAuthService) Refresh(_ context.Context, accessToken, refreshToken string) (*auth.TokenResponse, error) {
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	if s.err != nil {
		return nil, s.err
	}
	return s.tokens(), nil
}

func (s *stubAuthService) Logout(_ context.Context, accessToken string) error {
	s.loggedOut = accessToken
	return s.err
}

func TestAdminLogin(t *testing.T) {
	svc := &stubAuthService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"admin@example.com","password":"secret"}`))
	AdminLogin(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(refreshTokenHeader) != "refresh" {
		t.Fatal("expected refresh token header")
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]any)
	if data["access_token"] != "access" || data["expires_at"] == nil {
		t.Fatalf("unexpected payload %v", data)
	}
	if svc.login.Email != "admin@example.com" {
		t.Fatalf("credentials not forwarded")
	}
}

func TestAdminLoginInvalidCredentials(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"admin@example.com","password":"nope"}`))
	AdminLogin(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminLoginValidatesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(`{"email":"not-an-email"}`))
	AdminLogin(&stubAuthService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminRefreshUsesHeaderOrBody(t *testing.T) {
	svc := &stubAuthService{}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer old-access")
	req.Header.Set(refreshTokenHeader, "header-refresh")
	rec := httptest.NewRecorder()
	AdminRefresh(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.accessToken != "old-access" || svc.refreshToken != "header-refresh" {
		t.Fatalf("unexpected refresh input %s %s", svc.accessToken, svc.refreshToken)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/refresh", strings.NewReader(`{"refresh_token":"body-refresh"}`))
	req.Header.Set("Authorization", "Bearer old-access")
	rec = httptest.NewRecorder()
	AdminRefresh(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.refreshToken != "body-refresh" {
		t.Fatalf("expected body refresh token, got %s", svc.refreshToken)
	}
}

func TestAdminRefreshRequiresBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/refresh", strings.NewReader(`{"refresh_token":"x"}`))
	rec := httptest.NewRecorder()
	AdminRefresh(&stubAuthService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminLogout(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/logout", nil)
	req.Header.Set("Authorization", "Bearer the-token")
	rec := httptest.NewRecorder()
	AdminLogout(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.loggedOut != "the-token" {
		t.Fatalf("unexpected token %s", svc.loggedOut)
	}
}
