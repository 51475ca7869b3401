package controllers

import (
	"context"
	"net/http"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/api/validators"
	"github.com/horologe/storefront-backend/internal/auth"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
)

type adminAuthenticator interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
}

// AdminLogin exchanges operator credentials for a back office token.
func AdminLogin(svc adminAuthenticator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		var req auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.Login(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
