package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgAuth "github.com/horologe/storefront-backend/pkg/auth"
	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/outbox"
)

func testAdminConfig() config.AdminConfig {
	return config.AdminConfig{JWTSecret: "secret", JWTIssuer: "horologe", TokenTTL: time.Hour}
}

func TestAdminAuthAcceptsAdminToken(t *testing.T) {
	cfg := testAdminConfig()
	token, err := pkgAuth.MintAdminToken(cfg, time.Now(), pkgAuth.AdminTokenPayload{Subject: "ops@horologe.in"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	var subject string
	var actor *outbox.ActorRef
	handler := AdminAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = AdminSubjectFromContext(r.Context())
		actor = outbox.ActorFromContext(r.Context(), nil)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/coupons", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if subject != "ops@horologe.in" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if actor == nil || actor.Kind != outbox.ActorAdmin || actor.ID != "ops@horologe.in" {
		t.Fatalf("unexpected event actor %+v", actor)
	}
}

func TestAdminAuthRejections(t *testing.T) {
	cfg := testAdminConfig()
	nonAdmin, err := pkgAuth.MintAdminToken(cfg, time.Now(), pkgAuth.AdminTokenPayload{Subject: "intern", Role: "viewer"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	expired, err := pkgAuth.MintAdminToken(cfg, time.Now().Add(-2*time.Hour), pkgAuth.AdminTokenPayload{Subject: "ops"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	otherSecret := cfg
	otherSecret.JWTSecret = "different"
	forged, err := pkgAuth.MintAdminToken(otherSecret, time.Now(), pkgAuth.AdminTokenPayload{Subject: "ops"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"not admin", "Bearer " + nonAdmin, http.StatusForbidden},
	}

	handler := AdminAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/coupons", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, rec.Code)
		}
	}
}
