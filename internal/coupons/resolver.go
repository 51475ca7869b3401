package coupons

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/internal/cart"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/money"
)

type validator interface {
	Validate(ctx context.Context, code string, orderTotal money.Paise) (Validation, error)
}

type cartEditor interface {
	Get(ctx context.Context, cartID uuid.UUID) (*cart.Cart, error)
	SetCoupon(ctx context.Context, cartID uuid.UUID, coupon *cart.AppliedCoupon) (*cart.Cart, error)
}

// Resolver applies coupon codes to carts. A cart holds at most one coupon;
// applying a new code replaces the previous one.
type Resolver struct {
	coupons validator
	carts   cartEditor
}

func NewResolver(coupons validator, carts cartEditor) (*Resolver, error) {
	if coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	return &Resolver{coupons: coupons, carts: carts}, nil
}

// Apply validates code against the cart subtotal. Invalid codes leave the
// cart as it was and surface the evaluator message.
func (r *Resolver) Apply(ctx context.Context, cartID uuid.UUID, rawCode string) (*cart.Cart, Validation, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, Validation{}, pkgerrors.New(pkgerrors.CodeValidation, "please enter a coupon code")
	}
	c, err := r.carts.Get(ctx, cartID)
	if err != nil {
		return nil, Validation{}, err
	}
	if c.IsEmpty() {
		return nil, Validation{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	result, err := r.coupons.Validate(ctx, code, c.Subtotal())
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			return nil, Validation{}, err
		}
		return nil, Validation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to validate coupon")
	}
	if !result.IsValid {
		return nil, result, pkgerrors.New(pkgerrors.CodeValidation, result.Message).
			WithDetails(map[string]any{"coupon_code": code})
	}

	applied := &cart.AppliedCoupon{
		Code:           code,
		DiscountAmount: result.DiscountAmount,
		Message:        result.Message,
	}
	if result.CouponData != nil {
		applied.Code = result.CouponData.Code
		applied.FreeDelivery = result.CouponData.FreeDelivery
	}
	updated, err := r.carts.SetCoupon(ctx, cartID, applied)
	if err != nil {
		return nil, Validation{}, err
	}
	return updated, result, nil
}

// Remove clears the applied coupon; the discount drops back to zero.
func (r *Resolver) Remove(ctx context.Context, cartID uuid.UUID) (*cart.Cart, error) {
	return r.carts.SetCoupon(ctx, cartID, nil)
}
