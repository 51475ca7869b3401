package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/horologe/storefront-backend/api/responses"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	pkgredis "github.com/horologe/storefront-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	cartIdempotencyTTL     = 24 * time.Hour
	paymentIdempotencyTTL  = 7 * 24 * time.Hour
	inFlightIdempotencyTTL = 2 * time.Minute
	maxIdempotencyKeyLen   = 255
)

// idempotentRoute describes one endpoint whose responses are remembered per key.
// Required routes reject requests without a key; optional ones run uncached.
type idempotentRoute struct {
	method   string
	prefix   string
	suffix   string
	ttl      time.Duration
	required bool
}

func (r idempotentRoute) matches(method, path string) bool {
	if r.method != method {
		return false
	}
	if r.suffix == "" {
		return strings.TrimSuffix(path, "/") == r.prefix
	}
	return strings.HasPrefix(path, r.prefix) && strings.HasSuffix(path, r.suffix)
}

var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, prefix: "/api/v1/checkout", ttl: paymentIdempotencyTTL, required: true},
	{method: http.MethodPost, prefix: "/api/v1/checkout/", suffix: "/confirm-payment", ttl: paymentIdempotencyTTL, required: true},
	{method: http.MethodPost, prefix: "/api/v1/carts", ttl: cartIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/admin/v1/coupons", ttl: cartIdempotencyTTL},
	{method: http.MethodPost, prefix: "/api/admin/v1/products", ttl: cartIdempotencyTTL},
	{method: http.MethodPatch, prefix: "/api/admin/v1/orders/", suffix: "/status", ttl: cartIdempotencyTTL},
}

// storedResponse is what a completed request leaves behind under its key.
// A record with InFlight set marks a request that has not finished yet.
type storedResponse struct {
	InFlight    bool              `json:"in_flight,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

var replayedHeaders = []string{"Content-Type", "Location"}

// Idempotency replays the first response for a repeated Idempotency-Key and
// refuses a key that is reused with a different body or is still running.
// Server errors are not remembered so the client can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := lookupIdempotentRoute(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				if route.required {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r.Method, r.URL.Path, body)
			key := store.IdempotencyKey(idempotencyScope(r), clientKey)

			marker, _ := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(marker), inFlightIdempotencyTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !claimed {
				replayOrReject(ctx, logg, store, w, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			defer func() {
				if rec := recover(); rec != nil {
					releaseIdempotencyKey(ctx, logg, store, key)
					panic(rec)
				}
			}()
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				releaseIdempotencyKey(ctx, logg, store, key)
				return
			}
			record := storedResponse{
				Fingerprint: fingerprint,
				Status:      status,
				Body:        capture.body.Bytes(),
				Headers:     map[string]string{},
			}
			for _, name := range replayedHeaders {
				if v := capture.Header().Get(name); v != "" {
					record.Headers[name] = v
				}
			}
			payload, err := json.Marshal(record)
			if err != nil {
				logIdempotencyError(ctx, logg, "encode idempotent response", err)
				releaseIdempotencyKey(ctx, logg, store, key)
				return
			}
			if err := store.Set(ctx, key, string(payload), route.ttl); err != nil {
				logIdempotencyError(ctx, logg, "store idempotent response", err)
			}
		})
	}
}

func replayOrReject(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, w http.ResponseWriter, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, pkgredis.ErrNotFound) {
		// The earlier request failed and released the key between our SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotent response"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if stored.InFlight {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}
	for name, value := range stored.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func lookupIdempotentRoute(method, path string) (idempotentRoute, bool) {
	for _, route := range idempotentRoutes {
		if route.matches(method, path) {
			return route, true
		}
	}
	return idempotentRoute{}, false
}

// idempotencyScope keeps keys from colliding across admins and endpoints.
func idempotencyScope(r *http.Request) string {
	subject := AdminSubjectFromContext(r.Context())
	if subject == "" {
		subject = "public"
	}
	return subject + "|" + r.Method + "|" + r.URL.Path
}

func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func releaseIdempotencyKey(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key string) {
	if err := store.Del(context.WithoutCancel(ctx), key); err != nil {
		logIdempotencyError(ctx, logg, "release idempotency key", err)
	}
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logIdempotencyError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
