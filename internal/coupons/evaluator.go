package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
)

// Messages returned by validate_coupon. Storefront clients display them verbatim.
const (
	MsgInvalidCode   = "Invalid coupon code"
	MsgInactive      = "Coupon is not active"
	MsgNotYetValid   = "Coupon is not yet valid"
	MsgExpired       = "Coupon has expired"
	MsgUsageExceeded = "Coupon usage limit reached"
	MsgFreeDelivery  = "Free delivery applied"
	MsgApplied       = "Coupon applied successfully"
)

var hundred = decimal.NewFromInt(100)

// Validation is the result of checking a code against an order total.
type Validation struct {
	IsValid        bool        `json:"is_valid"`
	DiscountAmount money.Paise `json:"discount_amount"`
	Message        string      `json:"message"`
	CouponData     *CouponData `json:"coupon_data"`
}

// CouponData describes the coupon behind a valid result.
type CouponData struct {
	ID           uuid.UUID        `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	Type         enums.CouponType `json:"type"`
	Value        decimal.Decimal  `json:"value"`
	FreeDelivery bool             `json:"free_delivery"`
}

func invalid(msg string) Validation {
	return Validation{Message: msg}
}

// Evaluate applies the coupon rules in order: existence, active flag,
// validity window, usage cap, minimum order, then the discount itself.
func Evaluate(c *models.Coupon, orderTotal money.Paise, now time.Time) Validation {
	if c == nil {
		return invalid(MsgInvalidCode)
	}
	if !c.IsActive {
		return invalid(MsgInactive)
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return invalid(MsgNotYetValid)
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return invalid(MsgExpired)
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return invalid(MsgUsageExceeded)
	}
	if c.MinimumOrderAmount != nil && orderTotal < *c.MinimumOrderAmount {
		return invalid("Minimum order amount of ₹" + c.MinimumOrderAmount.Rupees().String() + " required")
	}

	data := &CouponData{ID: c.ID, Code: c.Code, Name: c.Name, Type: c.Type, Value: c.Value}
	switch c.Type {
	case enums.CouponTypeFreeDelivery:
		data.FreeDelivery = true
		return Validation{IsValid: true, Message: MsgFreeDelivery, CouponData: data}
	case enums.CouponTypePercentage:
		discount := orderTotal.Percent(decimal.Min(c.Value, hundred))
		if c.CapAmount != nil {
			discount = money.Min(discount, *c.CapAmount)
		}
		return Validation{IsValid: true, DiscountAmount: nonNegative(discount), Message: MsgApplied, CouponData: data}
	case enums.CouponTypeFlatAmount:
		discount := money.Min(money.FromRupees(c.Value), orderTotal)
		return Validation{IsValid: true, DiscountAmount: nonNegative(discount), Message: MsgApplied, CouponData: data}
	}
	return invalid(MsgInvalidCode)
}

func nonNegative(p money.Paise) money.Paise {
	if p < 0 {
		return 0
	}
	return p
}
