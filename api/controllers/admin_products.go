package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/api/validators"
	productsvc "github.com/horologe/storefront-backend/internal/products"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/pagination"
)

type productAdmin interface {
	AdminGet(ctx context.Context, id uuid.UUID) (*productsvc.AdminProductDTO, error)
	AdminList(ctx context.Context, active *bool, params pagination.Params) (*productsvc.AdminProductList, error)
	Create(ctx context.Context, input productsvc.ProductInput) (*productsvc.AdminProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input productsvc.ProductInput) (*productsvc.AdminProductDTO, error)
	Archive(ctx context.Context, id uuid.UUID) error
}

func unavailableProducts(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
}

// AdminProductList lists the whole catalog; ?active=true|false narrows it.
func AdminProductList(svc productAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableProducts(w, r, logg)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var active *bool
		if raw := strings.TrimSpace(r.URL.Query().Get("active")); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "active must be true or false"))
				return
			}
			active = &parsed
		}
		list, err := svc.AdminList(r.Context(), active, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminProductDetail(svc productAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableProducts(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.AdminGet(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminProductCreate(svc productAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableProducts(w, r, logg)
			return
		}
		var payload productsvc.ProductInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminProductUpdate(svc productAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableProducts(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload productsvc.ProductInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), id, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func AdminProductArchive(svc productAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableProducts(w, r, logg)
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Archive(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"archived": true})
	}
}
