package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/horologe/storefront-backend/pkg/config"
)

// Audience scopes admin tokens to the back office API.
const Audience = "horologe-back-office"

// clockSkew tolerated on exp/iat between API replicas.
const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// ErrNotAdmin is returned when a valid token does not carry the admin role.
var ErrNotAdmin = errors.New("token does not grant admin access")

// MintAdminToken signs an HS256 token valid for cfg.TokenTTL from now.
// An empty role defaults to admin and an empty JTI gets a fresh uuid.
func MintAdminToken(cfg config.AdminConfig, now time.Time, payload AdminTokenPayload) (string, error) {
	err := multierr.Combine(
		required("jwt secret", cfg.JWTSecret),
		required("jwt issuer", cfg.JWTIssuer),
		required("subject", payload.Subject),
	)
	if cfg.TokenTTL <= 0 {
		err = multierr.Append(err, errors.New("admin token ttl must be positive"))
	}
	if err != nil {
		return "", err
	}

	claims := AdminClaims{
		Role: firstNonBlank(payload.Role, RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWTIssuer,
			Subject:   strings.TrimSpace(payload.Subject),
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			ID:        firstNonBlank(payload.JTI, uuid.NewString()),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAdminToken verifies signature, expiry, issuer and audience, then
// requires the admin role.
func ParseAdminToken(cfg config.AdminConfig, raw string) (*AdminClaims, error) {
	if err := required("jwt secret", cfg.JWTSecret); err != nil {
		return nil, err
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(Audience),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	claims := &AdminClaims{}
	secret := []byte(cfg.JWTSecret)
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil }, opts...); err != nil {
		return nil, err
	}
	if !claims.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return claims, nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

func firstNonBlank(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
