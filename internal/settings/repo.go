package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/horologe/storefront-backend/pkg/db/models"
)

// Repository reads and writes the singleton settings rows.
type Repository interface {
	FindPaymentSettings(ctx context.Context) (*models.PaymentSettings, error)
	FindCollectionSettings(ctx context.Context) (*models.PaymentCollectionSettings, error)
	SavePaymentSettings(ctx context.Context, row *models.PaymentSettings) error
	SaveCollectionSettings(ctx context.Context, row *models.PaymentCollectionSettings) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a settings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FindPaymentSettings returns nil without error when the row is missing.
func (r *repository) FindPaymentSettings(ctx context.Context) (*models.PaymentSettings, error) {
	var row models.PaymentSettings
	err := r.db.WithContext(ctx).Where("id = ?", models.SingletonSettingsID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindCollectionSettings returns nil without error when the row is missing.
func (r *repository) FindCollectionSettings(ctx context.Context) (*models.PaymentCollectionSettings, error) {
	var row models.PaymentCollectionSettings
	err := r.db.WithContext(ctx).Where("id = ?", models.SingletonSettingsID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SavePaymentSettings(ctx context.Context, row *models.PaymentSettings) error {
	row.ID = models.SingletonSettingsID
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"cod_enabled", "online_payment_enabled", "updated_at"}),
		}).
		Create(row).Error
}

func (r *repository) SaveCollectionSettings(ctx context.Context, row *models.PaymentCollectionSettings) error {
	row.ID = models.SingletonSettingsID
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"collect_shipping_upfront",
				"collect_other_charges_upfront",
				"shipping_charge_paise",
				"updated_at",
			}),
		}).
		Create(row).Error
}
