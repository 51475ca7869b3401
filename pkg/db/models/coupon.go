package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
)

// Coupon is an admin managed discount code. Value holds rupees for
// flat_amount coupons and a percentage for percentage coupons.
type Coupon struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code               string           `gorm:"column:code;not null;uniqueIndex"`
	Name               string           `gorm:"column:name;not null"`
	Description        *string          `gorm:"column:description"`
	Type               enums.CouponType `gorm:"column:type;not null"`
	Value              decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null;default:0"`
	CapAmount          *money.Paise     `gorm:"column:cap_amount_paise"`
	MinimumOrderAmount *money.Paise     `gorm:"column:minimum_order_amount_paise"`
	MaxUses            *int             `gorm:"column:max_uses"`
	CurrentUses        int              `gorm:"column:current_uses;not null;default:0"`
	IsActive           bool             `gorm:"column:is_active;not null"`
	ValidFrom          *time.Time       `gorm:"column:valid_from"`
	ValidUntil         *time.Time       `gorm:"column:valid_until"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CouponUsage records a coupon redeemed by a placed order.
type CouponUsage struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID       uuid.UUID   `gorm:"column:coupon_id;type:uuid;not null"`
	OrderID        uuid.UUID   `gorm:"column:order_id;type:uuid;not null"`
	DiscountAmount money.Paise `gorm:"column:discount_amount_paise;not null"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (CouponUsage) TableName() string { return "coupon_usage" }

func (u *CouponUsage) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
