package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/api/responses"
	"github.com/horologe/storefront-backend/api/validators"
	cartsvc "github.com/horologe/storefront-backend/internal/cart"
	"github.com/horologe/storefront-backend/internal/coupons"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/money"
)

type cartEditor interface {
	Create(ctx context.Context) (*cartsvc.Cart, error)
	Get(ctx context.Context, cartID uuid.UUID) (*cartsvc.Cart, error)
	AddItem(ctx context.Context, cartID, productID uuid.UUID) (*cartsvc.Cart, error)
	Increment(ctx context.Context, cartID, productID uuid.UUID) (*cartsvc.Cart, error)
	Decrement(ctx context.Context, cartID, productID uuid.UUID) (*cartsvc.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*cartsvc.Cart, error)
}

type couponApplier interface {
	Apply(ctx context.Context, cartID uuid.UUID, rawCode string) (*cartsvc.Cart, coupons.Validation, error)
	Remove(ctx context.Context, cartID uuid.UUID) (*cartsvc.Cart, error)
}

type cartResponse struct {
	*cartsvc.Cart
	Subtotal money.Paise `json:"subtotal"`
	Discount money.Paise `json:"discount"`
}

func newCartResponse(c *cartsvc.Cart) cartResponse {
	return cartResponse{Cart: c, Subtotal: c.Subtotal(), Discount: c.Discount()}
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type applyCouponResponse struct {
	Cart       cartResponse       `json:"cart"`
	Validation coupons.Validation `json:"validation"`
}

func CartCreate(svc cartEditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		c, err := svc.Create(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(c))
	}
}

func CartFetch(svc cartEditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.Get(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

// CartAddItem adds a product at its MOQ, or steps an existing line by one MOQ.
func CartAddItem(svc cartEditor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.AddItem(r.Context(), cartID, payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

type lineMutation func(ctx context.Context, cartID, productID uuid.UUID) (*cartsvc.Cart, error)

func cartLineHandler(svc cartEditor, logg *logger.Logger, pick func(cartEditor) lineMutation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := pick(svc)(r.Context(), cartID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

func CartIncrement(svc cartEditor, logg *logger.Logger) http.HandlerFunc {
	return cartLineHandler(svc, logg, func(s cartEditor) lineMutation { return s.Increment })
}

func CartDecrement(svc cartEditor, logg *logger.Logger) http.HandlerFunc {
	return cartLineHandler(svc, logg, func(s cartEditor) lineMutation { return s.Decrement })
}

func CartRemoveItem(svc cartEditor, logg *logger.Logger) http.HandlerFunc {
	return cartLineHandler(svc, logg, func(s cartEditor) lineMutation { return s.RemoveItem })
}

// CartApplyCoupon validates a code against the cart subtotal and stores the result.
func CartApplyCoupon(resolver couponApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, validation, err := resolver.Apply(r.Context(), cartID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, applyCouponResponse{Cart: newCartResponse(c), Validation: validation})
	}
}

func CartRemoveCoupon(resolver couponApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}
		cartID, err := validators.ParseUUIDParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := resolver.Remove(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}
