package controllers

import (
	"context"
	"net/http"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/api/validators"
	"github.com/horologe/storefront-backend/internal/coupons"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/money"
)

type couponValidator interface {
	Validate(ctx context.Context, code string, orderTotal money.Paise) (coupons.Validation, error)
}

type validateCouponRequest struct {
	CouponCodeInput string      `json:"coupon_code_input"`
	OrderTotal      money.Paise `json:"order_total" validate:"gte=0"`
}

// ValidateCoupon answers with a single-element array, the shape storefront
// clients already parse.
func ValidateCoupon(svc couponValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Validate(r.Context(), payload.CouponCodeInput, payload.OrderTotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteJSON(w, http.StatusOK, []coupons.Validation{result})
	}
}
