package controllers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/horologe/storefront-backend/internal/auth"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
)

type stubAuthenticator struct {
	got auth.LoginRequest
	err error
}

func (s *stubAuthenticator) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &auth.LoginResponse{AccessToken: "jwt", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestAdminLoginReturnsToken(t *testing.T) {
	svc := &stubAuthenticator{}
	rec := serve(AdminLogin(svc, nil), newRequest(http.MethodPost, "/login", `{"username":"curator","password":"tourbillon"}`, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp auth.LoginResponse
	decodeData(t, rec, &resp)
	if resp.AccessToken != "jwt" || svc.got.Username != "curator" {
		t.Fatalf("unexpected response %+v / request %+v", resp, svc.got)
	}
}

func TestAdminLoginValidatesBody(t *testing.T) {
	rec := serve(AdminLogin(&stubAuthenticator{}, nil), newRequest(http.MethodPost, "/login", `{"username":"curator"}`, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminLoginUnauthorized(t *testing.T) {
	svc := &stubAuthenticator{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	rec := serve(AdminLogin(svc, nil), newRequest(http.MethodPost, "/login", `{"username":"a","password":"b"}`, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Code != string(pkgerrors.CodeUnauthorized) {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}
