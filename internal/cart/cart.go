package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/internal/pricing"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/types"
)

// Line is a product snapshot plus quantity. Quantity is always a positive
// multiple of MOQ reached by stepping in MOQ increments.
type Line struct {
	ProductID         uuid.UUID               `json:"product_id"`
	Name              string                  `json:"name"`
	Brand             string                  `json:"brand,omitempty"`
	ImageURL          *string                 `json:"image_url,omitempty"`
	UnitPrice         money.Paise             `json:"unit_price"`
	Quantity          int                     `json:"quantity"`
	MOQ               int                     `json:"moq"`
	AdditionalCharges types.AdditionalCharges `json:"additional_charges"`
}

// LineTotal is unit price times quantity.
func (l Line) LineTotal() money.Paise {
	return l.UnitPrice.Times(l.Quantity)
}

// AppliedCoupon is the validation result stored with the cart. The discount is
// taken as computed by the coupon evaluator.
type AppliedCoupon struct {
	Code           string      `json:"code"`
	DiscountAmount money.Paise `json:"discount_amount"`
	FreeDelivery   bool        `json:"free_delivery"`
	Message        string      `json:"message"`
}

// Cart is a shopper's basket with at most one applied coupon.
type Cart struct {
	ID        uuid.UUID      `json:"id"`
	Lines     []Line         `json:"lines"`
	Coupon    *AppliedCoupon `json:"applied_coupon,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Subtotal sums line totals.
func (c *Cart) Subtotal() money.Paise {
	return pricing.Subtotal(c.PricingLines())
}

// Discount returns the applied coupon discount or zero.
func (c *Cart) Discount() money.Paise {
	if c == nil || c.Coupon == nil {
		return 0
	}
	return c.Coupon.DiscountAmount
}

// FreeDelivery reports whether the applied coupon waives shipping.
func (c *Cart) FreeDelivery() bool {
	return c != nil && c.Coupon != nil && c.Coupon.FreeDelivery
}

// CouponCode returns the applied code or an empty string.
func (c *Cart) CouponCode() string {
	if c == nil || c.Coupon == nil {
		return ""
	}
	return c.Coupon.Code
}

// PricingLines converts the cart for the pricing engine.
func (c *Cart) PricingLines() []pricing.Line {
	if c == nil {
		return nil
	}
	out := make([]pricing.Line, len(c.Lines))
	for i, line := range c.Lines {
		out[i] = pricing.Line{
			UnitPrice:         line.UnitPrice,
			Quantity:          line.Quantity,
			AdditionalCharges: line.AdditionalCharges,
		}
	}
	return out
}

func (c *Cart) lineIndex(productID uuid.UUID) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}
