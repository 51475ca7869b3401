package coupons

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
)

// CouponInput is an admin create or full update.
type CouponInput struct {
	Code               string           `json:"code" validate:"required,max=64"`
	Name               string           `json:"name" validate:"required,max=200"`
	Description        *string          `json:"description,omitempty"`
	Type               enums.CouponType `json:"type" validate:"required"`
	Value              decimal.Decimal  `json:"value"`
	CapAmount          *money.Paise     `json:"cap_amount,omitempty"`
	MinimumOrderAmount *money.Paise     `json:"minimum_order_amount,omitempty"`
	MaxUses            *int             `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
	IsActive           *bool            `json:"is_active,omitempty"`
	ValidFrom          *time.Time       `json:"valid_from,omitempty"`
	ValidUntil         *time.Time       `json:"valid_until,omitempty"`
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponDTO is the admin view of a coupon.
type CouponDTO struct {
	ID                 uuid.UUID        `json:"id"`
	Code               string           `json:"code"`
	Name               string           `json:"name"`
	Description        *string          `json:"description,omitempty"`
	Type               enums.CouponType `json:"type"`
	Value              decimal.Decimal  `json:"value"`
	CapAmount          *money.Paise     `json:"cap_amount,omitempty"`
	MinimumOrderAmount *money.Paise     `json:"minimum_order_amount,omitempty"`
	MaxUses            *int             `json:"max_uses,omitempty"`
	CurrentUses        int              `json:"current_uses"`
	IsActive           bool             `json:"is_active"`
	ValidFrom          *time.Time       `json:"valid_from,omitempty"`
	ValidUntil         *time.Time       `json:"valid_until,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func toDTO(c models.Coupon) CouponDTO {
	return CouponDTO{
		ID:                 c.ID,
		Code:               c.Code,
		Name:               c.Name,
		Description:        c.Description,
		Type:               c.Type,
		Value:              c.Value,
		CapAmount:          c.CapAmount,
		MinimumOrderAmount: c.MinimumOrderAmount,
		MaxUses:            c.MaxUses,
		CurrentUses:        c.CurrentUses,
		IsActive:           c.IsActive,
		ValidFrom:          c.ValidFrom,
		ValidUntil:         c.ValidUntil,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
