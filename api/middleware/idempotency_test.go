package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func postCheckout(t *testing.T, h http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	return payload.Error.Code
}

func TestLookupIdempotentRoute(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		ok       bool
		required bool
		ttl      time.Duration
	}{
		{"checkout submit", http.MethodPost, "/api/v1/checkout", true, true, paymentIdempotencyTTL},
		{"checkout submit trailing slash", http.MethodPost, "/api/v1/checkout/", true, true, paymentIdempotencyTTL},
		{"confirm payment", http.MethodPost, "/api/v1/checkout/123/confirm-payment", true, true, paymentIdempotencyTTL},
		{"cart create", http.MethodPost, "/api/v1/carts", true, false, cartIdempotencyTTL},
		{"admin order status", http.MethodPatch, "/api/admin/v1/orders/abc/status", true, false, cartIdempotencyTTL},
		{"dismiss", http.MethodPost, "/api/v1/checkout/123/dismiss", false, false, 0},
		{"cart fetch", http.MethodGet, "/api/v1/carts", false, false, 0},
		{"cart items", http.MethodPost, "/api/v1/carts/abc/items", false, false, 0},
	}

	for _, tt := range tests {
		route, ok := lookupIdempotentRoute(tt.method, tt.path)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if !ok {
			continue
		}
		if route.required != tt.required || route.ttl != tt.ttl {
			t.Fatalf("%s: got required=%v ttl=%v", tt.name, route.required, route.ttl)
		}
	}
}

func TestIdempotencyRequiresKeyOnCheckout(t *testing.T) {
	called := false
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := postCheckout(t, h, "", `{"cartId":"c1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if called {
		t.Fatal("handler should not run without idempotency key")
	}
}

func TestIdempotencyOptionalKeyPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", strings.NewReader(`{}`))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both unkeyed requests to run, got %d", calls)
	}
	if len(store.data) != 0 {
		t.Fatalf("unkeyed requests should not be stored: %v", store.data)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := postCheckout(t, h, "abc", `{"cartId":"c1"}`)
	if first.Code != http.StatusAccepted {
		t.Fatalf("expected first response 202 got %d", first.Code)
	}
	if first.Header().Get(ReplayedHeader) != "" {
		t.Fatal("first response must not be marked as replayed")
	}

	replay := postCheckout(t, h, "abc", `{"cartId":"c1"}`)
	if replay.Code != http.StatusAccepted {
		t.Fatalf("expected replay status 202 got %d", replay.Code)
	}
	if replay.Header().Get("Content-Type") != "application/json" || replay.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("unexpected replay headers %v", replay.Header())
	}
	if replay.Body.String() != `{"ok":true}` {
		t.Fatalf("expected stored body got %s", replay.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	for key, ttl := range store.ttls {
		if ttl != paymentIdempotencyTTL {
			t.Fatalf("key %s stored with ttl %v", key, ttl)
		}
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	postCheckout(t, h, "xyz", `{"cartId":"c1"}`)
	rec := postCheckout(t, h, "xyz", `{"cartId":"c2"}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, code)
	}
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = postCheckout(t, h, "dup", `{"cartId":"c1"}`)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	outer := postCheckout(t, h, "dup", `{"cartId":"c1"}`)
	if outer.Code != http.StatusCreated {
		t.Fatalf("expected first request to finish, got %d", outer.Code)
	}
	if inner.Code != http.StatusConflict {
		t.Fatalf("expected in-flight duplicate to get 409, got %d", inner.Code)
	}
	if code := errorCode(t, inner); code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeConflict, code)
	}
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	if rec := postCheckout(t, h, "retry", `{}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
	if len(store.data) != 0 {
		t.Fatal("server error should release the key")
	}
	if rec := postCheckout(t, h, "retry", `{}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected retry to run, got %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("expected two handler runs, got %d", calls)
	}
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newFakeStore()
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	func() {
		defer func() { _ = recover() }()
		postCheckout(t, h, "panic", `{}`)
	}()
	if len(store.data) != 0 {
		t.Fatal("panicking handler should release the key")
	}
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := postCheckout(t, h, strings.Repeat("k", maxIdempotencyKeyLen+1), `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
