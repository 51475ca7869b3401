package controllers

import (
	"context"
	"net/http"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/api/validators"
	ordersvc "github.com/horologe/storefront-backend/internal/orders"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
)

type orderPlacer interface {
	CreateOrder(ctx context.Context, req ordersvc.CreateOrderRequest) (*ordersvc.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req ordersvc.VerifyPaymentRequest) (*ordersvc.VerifyPaymentResponse, error)
}

type orderTracker interface {
	Track(ctx context.Context, phone string) ([]ordersvc.OrderDTO, error)
}

// CreateOrder persists an order and opens a gateway order for online legs.
// The body is returned without the data envelope.
func CreateOrder(svc orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		var payload ordersvc.CreateOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.CreateOrder(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

// VerifyPayment checks the gateway signature and confirms the order.
func VerifyPayment(svc orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		var payload ordersvc.VerifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp, err := svc.VerifyPayment(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, resp)
	}
}

// TrackOrders lists a shopper's orders by phone number.
func TrackOrders(svc orderTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		phone := validators.SanitizeString(r.URL.Query().Get("phone"), 20)
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "phone", phone)
		}
		list, err := svc.Track(ctx, phone)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Debug(ctx, "orders tracked")
		}
		responses.WriteSuccess(w, list)
	}
}
