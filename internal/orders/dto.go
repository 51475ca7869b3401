package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/pagination"
	"github.com/horologe/storefront-backend/pkg/types"
)

// CreateOrderItem is one purchased product at its checkout price.
type CreateOrderItem struct {
	ID       uuid.UUID   `json:"id" validate:"required"`
	Quantity int         `json:"quantity" validate:"required,gt=0"`
	Price    money.Paise `json:"price" validate:"gte=0"`
}

// CreateOrderRequest is the create-order payload. CODShippingOnly asks for an
// upfront-charge tracking order with no items; CODShippingUpfrontPaid marks
// the real COD order placed after that charge was verified.
type CreateOrderRequest struct {
	Items                  []CreateOrderItem     `json:"items" validate:"dive"`
	ShippingAddress        types.ShippingAddress `json:"shippingAddress" validate:"required"`
	TotalAmount            money.Paise           `json:"totalAmount" validate:"gte=0"`
	PaymentMethod          enums.PaymentMethod   `json:"paymentMethod" validate:"required,oneof=online cod"`
	CouponCode             *string               `json:"couponCode,omitempty"`
	DiscountAmount         money.Paise           `json:"discountAmount,omitempty" validate:"gte=0"`
	CODShippingOnly        bool                  `json:"codShippingOnly,omitempty"`
	CODShippingUpfrontPaid bool                  `json:"codShippingUpfrontPaid,omitempty"`
	UpfrontOrderID         *uuid.UUID            `json:"upfrontOrderId,omitempty"`
}

// CreateOrderResponse carries the gateway handle for legs paid online.
// Amount is in paise, as the gateway widget expects.
type CreateOrderResponse struct {
	OrderID         uuid.UUID `json:"orderId"`
	RazorpayOrderID string    `json:"razorpayOrderId,omitempty"`
	Amount          int64     `json:"amount,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	Key             string    `json:"key,omitempty"`
}

// RequiresPayment reports whether the caller must open the gateway.
func (r CreateOrderResponse) RequiresPayment() bool {
	return r.RazorpayOrderID != ""
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string    `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string    `json:"razorpayPaymentId" validate:"required"`
	OrderID           uuid.UUID `json:"orderId" validate:"required"`
	RazorpaySignature string    `json:"razorpaySignature,omitempty"`
}

type VerifyPaymentResponse struct {
	Success bool `json:"success"`
}

// ListFilters narrows the admin order listing.
type ListFilters struct {
	Status *enums.OrderStatus
	Kind   *enums.OrderKind
}

type OrderItemProduct struct {
	Name     string  `json:"name"`
	Brand    string  `json:"brand"`
	ImageURL *string `json:"image_url,omitempty"`
}

type OrderItemDTO struct {
	ID        uuid.UUID         `json:"id"`
	ProductID uuid.UUID         `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Price     money.Paise       `json:"price"`
	Product   *OrderItemProduct `json:"product,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// OrderDTO is the order as shown on tracking and admin screens.
type OrderDTO struct {
	ID                uuid.UUID             `json:"id"`
	Kind              enums.OrderKind       `json:"kind"`
	PaymentMethod     enums.PaymentMethod   `json:"payment_method"`
	Status            enums.OrderStatus     `json:"status"`
	TotalAmount       money.Paise           `json:"total_amount"`
	DiscountAmount    money.Paise           `json:"discount_amount"`
	CouponCode        *string               `json:"coupon_code,omitempty"`
	ShippingAddress   types.ShippingAddress `json:"shipping_address"`
	UpfrontPaid       bool                  `json:"upfront_paid"`
	UpfrontOrderID    *uuid.UUID            `json:"upfront_order_id,omitempty"`
	RazorpayOrderID   *string               `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID *string               `json:"razorpay_payment_id,omitempty"`
	Items             []OrderItemDTO        `json:"order_items"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

type OrderList = pagination.Page[OrderDTO]

func toDTO(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                o.ID,
		Kind:              o.Kind,
		PaymentMethod:     o.PaymentMethod,
		Status:            o.Status,
		TotalAmount:       o.TotalAmount,
		DiscountAmount:    o.DiscountAmount,
		CouponCode:        o.CouponCode,
		ShippingAddress:   o.ShippingAddress,
		UpfrontPaid:       o.UpfrontPaid,
		UpfrontOrderID:    o.UpfrontOrderID,
		RazorpayOrderID:   o.RazorpayOrderID,
		RazorpayPaymentID: o.RazorpayPaymentID,
		Items:             make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	// upfront tracking orders keep the marker readers already filter on
	if o.IsUpfrontCharges() {
		marker := enums.UpfrontChargesCouponMarker
		dto.CouponCode = &marker
	}
	for _, item := range o.Items {
		itemDTO := OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			CreatedAt: item.CreatedAt,
		}
		if item.Product != nil {
			itemDTO.Product = &OrderItemProduct{
				Name:     item.Product.Name,
				Brand:    item.Product.Brand,
				ImageURL: item.Product.ImageURL,
			}
		}
		dto.Items = append(dto.Items, itemDTO)
	}
	return dto
}

func toDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, len(rows))
	for i, row := range rows {
		out[i] = toDTO(row)
	}
	return out
}
