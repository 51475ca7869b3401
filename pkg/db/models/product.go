package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/types"
)

// Product is a catalog watch. MOQ is the minimum order quantity and the
// step by which cart quantities move.
type Product struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string                  `gorm:"column:name;not null"`
	Brand             string                  `gorm:"column:brand;not null"`
	Description       *string                 `gorm:"column:description"`
	ImageURL          *string                 `gorm:"column:image_url"`
	Price             money.Paise             `gorm:"column:price_paise;not null"`
	MOQ               int                     `gorm:"column:moq;not null;default:1"`
	AdditionalCharges types.AdditionalCharges `gorm:"column:additional_charges;type:jsonb;serializer:json;not null"`
	InStock           bool                    `gorm:"column:in_stock;not null"`
	IsActive          bool                    `gorm:"column:is_active;not null"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// EffectiveMOQ treats a missing or invalid MOQ as 1.
func (p Product) EffectiveMOQ() int {
	if p.MOQ < 1 {
		return 1
	}
	return p.MOQ
}
