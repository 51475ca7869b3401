package controllers

import (
	"context"
	"net/http"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/api/validators"
	"github.com/horologe/storefront-backend/internal/settings"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
)

type settingsStore interface {
	Methods(ctx context.Context) (settings.Methods, error)
	Collection(ctx context.Context) (settings.Collection, error)
	UpdateMethods(ctx context.Context, input settings.Methods) (settings.Methods, error)
	UpdateCollection(ctx context.Context, input settings.UpdateCollectionInput) (settings.Collection, error)
}

type paymentSettingsResponse struct {
	settings.Methods
	AvailableMethods []string `json:"available_methods"`
}

func newPaymentSettingsResponse(m settings.Methods) paymentSettingsResponse {
	available := []string{}
	for _, method := range m.Available() {
		available = append(available, string(method))
	}
	return paymentSettingsResponse{Methods: m, AvailableMethods: available}
}

// PaymentSettings is the public read of enabled payment methods.
func PaymentSettings(svc settingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		methods, err := svc.Methods(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentSettingsResponse(methods))
	}
}

func AdminUpdatePaymentSettings(svc settingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var payload settings.Methods
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methods, err := svc.UpdateMethods(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentSettingsResponse(methods))
	}
}

func AdminCollectionSettings(svc settingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		collection, err := svc.Collection(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, collection)
	}
}

func AdminUpdateCollectionSettings(svc settingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}
		var payload settings.UpdateCollectionInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		collection, err := svc.UpdateCollection(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, collection)
	}
}
