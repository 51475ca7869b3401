package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
)

// OrderCreatedEvent announces a persisted order, including upfront tracking orders.
type OrderCreatedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	Kind           enums.OrderKind     `json:"kind"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	Status         enums.OrderStatus   `json:"status"`
	TotalAmount    money.Paise         `json:"total_amount"`
	DiscountAmount money.Paise         `json:"discount_amount"`
	CouponCode     *string             `json:"coupon_code,omitempty"`
	ItemCount      int                 `json:"item_count"`
	UpfrontPaid    bool                `json:"upfront_paid"`
	UpfrontOrderID *uuid.UUID          `json:"upfront_order_id,omitempty"`
}

// OrderPaymentVerifiedEvent is emitted once the gateway signature checks out.
type OrderPaymentVerifiedEvent struct {
	OrderID           uuid.UUID       `json:"order_id"`
	Kind              enums.OrderKind `json:"kind"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	Amount            money.Paise     `json:"amount"`
	VerifiedAt        time.Time       `json:"verified_at"`
}

// OrderStatusChangedEvent records an admin or system status change.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	Kind          enums.OrderKind     `json:"kind"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalAmount   money.Paise         `json:"total_amount"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	ChangedAt     time.Time           `json:"changed_at"`
}

// OrderGatewayFailedEvent records an order cancelled because the gateway order could not be created.
type OrderGatewayFailedEvent struct {
	OrderID  uuid.UUID   `json:"order_id"`
	Amount   money.Paise `json:"amount"`
	Reason   string      `json:"reason"`
	FailedAt time.Time   `json:"failed_at"`
}

// CouponRedeemedEvent is emitted when a placed order consumes a coupon.
type CouponRedeemedEvent struct {
	CouponID       uuid.UUID   `json:"coupon_id"`
	Code           string      `json:"code"`
	OrderID        uuid.UUID   `json:"order_id"`
	DiscountAmount money.Paise `json:"discount_amount"`
}

// CouponReleasedEvent is emitted when a cancelled order gives its coupon use back.
type CouponReleasedEvent struct {
	CouponID       uuid.UUID   `json:"coupon_id"`
	Code           string      `json:"code"`
	OrderID        uuid.UUID   `json:"order_id"`
	DiscountAmount money.Paise `json:"discount_amount"`
	ReleasedAt     time.Time   `json:"released_at"`
}
