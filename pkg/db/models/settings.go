package models

import (
	"time"

	"github.com/horologe/storefront-backend/pkg/money"
)

// SingletonSettingsID is the primary key of the one row each settings table holds.
const SingletonSettingsID = 1

// PaymentSettings toggles which payment methods checkout offers.
type PaymentSettings struct {
	ID                   int       `gorm:"column:id;primaryKey"`
	CODEnabled           bool      `gorm:"column:cod_enabled;not null"`
	OnlinePaymentEnabled bool      `gorm:"column:online_payment_enabled;not null"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentSettings) TableName() string { return "payment_settings" }

// PaymentCollectionSettings decides which charges a COD order collects
// upfront. NULL columns fall back to defaults when read.
type PaymentCollectionSettings struct {
	ID                         int          `gorm:"column:id;primaryKey"`
	CollectShippingUpfront     *bool        `gorm:"column:collect_shipping_upfront"`
	CollectOtherChargesUpfront *bool        `gorm:"column:collect_other_charges_upfront"`
	ShippingCharge             *money.Paise `gorm:"column:shipping_charge_paise"`
	UpdatedAt                  time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentCollectionSettings) TableName() string { return "payment_collection_settings" }
