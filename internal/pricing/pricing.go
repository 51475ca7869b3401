// Package pricing computes what a checkout costs and how the total splits
// between the gateway charge taken now and the cash collected at delivery.
// Every function here is pure; callers re-derive quotes from current cart and
// settings state on each request.
package pricing

import (
	"github.com/horologe/storefront-backend/internal/settings"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/types"
)

// Line is the pricing view of a cart line.
type Line struct {
	UnitPrice         money.Paise
	Quantity          int
	AdditionalCharges types.AdditionalCharges
}

// Charges are the non-merchandise amounts of an order.
type Charges struct {
	Shipping money.Paise `json:"shipping"`
	Other    money.Paise `json:"other"`
}

// Input is everything ComputeBreakdown needs.
type Input struct {
	Subtotal                   money.Paise
	Discount                   money.Paise
	Shipping                   money.Paise
	Other                      money.Paise
	Method                     enums.PaymentMethod
	CollectShippingUpfront     bool
	CollectOtherChargesUpfront bool
}

// Breakdown is the authoritative price of a checkout. PayableNow plus
// PayableAtDelivery always equals TotalAmount.
type Breakdown struct {
	PayableNow        money.Paise `json:"payable_now"`
	PayableAtDelivery money.Paise `json:"payable_at_delivery"`
	TotalAmount       money.Paise `json:"total_amount"`
	ShippingCharge    money.Paise `json:"shipping_charge"`
	OtherCharges      money.Paise `json:"other_charges"`
	Subtotal          money.Paise `json:"subtotal"`
	DiscountAmount    money.Paise `json:"discount_amount"`
}

// OrderTotal is the merchandise amount after discount.
func (b Breakdown) OrderTotal() money.Paise {
	return b.Subtotal - b.DiscountAmount
}

// RequiresUpfrontPayment reports whether a gateway charge is due before the
// order can be placed.
func (b Breakdown) RequiresUpfrontPayment() bool {
	return b.PayableNow > 0
}

// Subtotal sums unit price times quantity across lines.
func Subtotal(lines []Line) money.Paise {
	var total money.Paise
	for _, line := range lines {
		total += line.UnitPrice.Times(line.Quantity)
	}
	return total
}

// AggregateCharges derives the shipping and other charges of a cart. Shipping
// is the flat collection setting; other charges scale with quantity.
func AggregateCharges(lines []Line, collection settings.Collection) Charges {
	var other money.Paise
	for _, line := range lines {
		other += line.AdditionalCharges.PerUnit().Times(line.Quantity)
	}
	return Charges{Shipping: collection.ShippingCharge, Other: other}
}

// ComputeBreakdown splits an order total into payable now and at delivery.
// The discount only reduces merchandise and is clamped to the subtotal, so
// shipping and other charges are never discounted.
func ComputeBreakdown(in Input) Breakdown {
	discount := money.Clamp(in.Discount, 0, max(in.Subtotal, 0))
	orderTotal := in.Subtotal - discount
	total := orderTotal + in.Shipping + in.Other

	out := Breakdown{
		TotalAmount:    total,
		ShippingCharge: in.Shipping,
		OtherCharges:   in.Other,
		Subtotal:       in.Subtotal,
		DiscountAmount: discount,
	}

	if in.Method == enums.PaymentMethodOnline {
		out.PayableNow = total
		return out
	}

	var upfront money.Paise
	atDelivery := orderTotal
	if in.CollectShippingUpfront {
		upfront += in.Shipping
	} else {
		atDelivery += in.Shipping
	}
	// a zero charge set never opens an upfront leg
	if in.CollectOtherChargesUpfront && in.Other > 0 {
		upfront += in.Other
	} else {
		atDelivery += in.Other
	}
	out.PayableNow = upfront
	out.PayableAtDelivery = atDelivery
	return out
}

// QuoteInput describes a cart ready to be priced.
type QuoteInput struct {
	Lines        []Line
	Discount     money.Paise
	FreeDelivery bool
	Collection   settings.Collection
	Method       enums.PaymentMethod
}

// Quote wires AggregateCharges and ComputeBreakdown together. A free-delivery
// coupon zeroes the shipping charge.
func Quote(in QuoteInput) Breakdown {
	charges := AggregateCharges(in.Lines, in.Collection)
	if in.FreeDelivery {
		charges.Shipping = 0
	}
	return ComputeBreakdown(Input{
		Subtotal:                   Subtotal(in.Lines),
		Discount:                   in.Discount,
		Shipping:                   charges.Shipping,
		Other:                      charges.Other,
		Method:                     in.Method,
		CollectShippingUpfront:     in.Collection.CollectShippingUpfront,
		CollectOtherChargesUpfront: in.Collection.CollectOtherChargesUpfront,
	})
}
