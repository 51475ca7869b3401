package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/types"
)

// Order is a storefront order. Upfront-charge orders carry no items and only
// record the gateway charge collected ahead of a cash-on-delivery order.
type Order struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind              enums.OrderKind       `gorm:"column:kind;not null;default:'standard'"`
	PaymentMethod     enums.PaymentMethod   `gorm:"column:payment_method;not null"`
	Status            enums.OrderStatus     `gorm:"column:status;not null;default:'pending'"`
	TotalAmount       money.Paise           `gorm:"column:total_amount_paise;not null"`
	DiscountAmount    money.Paise           `gorm:"column:discount_amount_paise;not null;default:0"`
	CouponCode        *string               `gorm:"column:coupon_code"`
	ShippingAddress   types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	CustomerPhone     string                `gorm:"column:customer_phone;not null"`
	UpfrontPaid       bool                  `gorm:"column:upfront_paid;not null;default:false"`
	UpfrontOrderID    *uuid.UUID            `gorm:"column:upfront_order_id;type:uuid"`
	RazorpayOrderID   *string               `gorm:"column:razorpay_order_id"`
	RazorpayPaymentID *string               `gorm:"column:razorpay_payment_id"`
	Items             []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsUpfrontCharges reports whether the order only tracks an upfront COD charge.
func (o Order) IsUpfrontCharges() bool {
	return o.Kind == enums.OrderKindUpfrontCharges
}

// OrderItem snapshots a purchased product at its checkout price.
type OrderItem struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID   `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int         `gorm:"column:quantity;not null"`
	Price     money.Paise `gorm:"column:price_paise;not null"`
	Product   *Product    `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
