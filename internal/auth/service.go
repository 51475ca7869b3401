package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	pkgAuth "github.com/horologe/storefront-backend/pkg/auth"
	"github.com/horologe/storefront-backend/pkg/config"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
)

const invalidCredentialsMessage = "invalid credentials"

// Service authenticates the back office operator.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type passwordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

type service struct {
	cfg      config.AdminConfig
	verifier passwordVerifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(cfg config.AdminConfig, verifier passwordVerifier, logg *logger.Logger) (Service, error) {
	if verifier == nil {
		return nil, errors.New("password verifier required")
	}
	return &service{
		cfg:      cfg,
		verifier: verifier,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Login exchanges the configured operator credentials for an admin token.
// Unknown usernames still pay for a hash comparison.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(s.cfg.PasswordHash) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "password login is disabled")
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	expected := strings.ToLower(strings.TrimSpace(s.cfg.Username))
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(expected)) == 1

	encoded := s.cfg.PasswordHash
	if !userMatch {
		encoded = ""
	}
	valid, err := s.verifier.Verify(req.Password, encoded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !userMatch {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithActor(ctx, username), "admin login rejected")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now()
	token, err := pkgAuth.MintAdminToken(s.cfg, now, pkgAuth.AdminTokenPayload{Subject: expected})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithActor(ctx, expected), "admin login succeeded")
	}
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   now.Add(s.cfg.TokenTTL),
	}, nil
}
