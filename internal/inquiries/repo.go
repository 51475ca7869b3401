package inquiries

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/pagination"
)

// ErrNotFound is returned when no contact query matches the id.
var ErrNotFound = errors.New("contact query not found")

// Repository exposes persistence helpers for contact queries.
type Repository interface {
	Create(ctx context.Context, query *models.ContactQuery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContactQuery, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ContactQuery, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.InquiryStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contact query repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, query *models.ContactQuery) error {
	return r.db.WithContext(ctx).Create(query).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContactQuery, error) {
	var row models.ContactQuery
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.ContactQuery, error) {
	query := r.db.WithContext(ctx).Model(&models.ContactQuery{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	page, err := pagination.Keyset(params)
	if err != nil {
		return nil, err
	}

	var rows []models.ContactQuery
	err = query.Scopes(page).Find(&rows).Error
	return rows, err
}

// UpdateStatus reports whether a row matched the id.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.InquiryStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ContactQuery{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
