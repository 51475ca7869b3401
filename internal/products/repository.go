package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/pagination"
)

// ErrNotFound is returned when a product does not exist or is hidden.
var ErrNotFound = errors.New("product not found")

// Repository reads the catalog.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads an active product.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads active products keyed by id. Missing ids are omitted.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns active products newest first, paginated by (created_at, id).
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if brand := strings.TrimSpace(filters.Brand); brand != "" {
		query = query.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}
	if filters.InStockOnly {
		query = query.Where("in_stock = ?", true)
	}

	page, err := pagination.Keyset(params)
	if err != nil {
		return nil, err
	}

	var rows []models.Product
	err = query.Scopes(page).Find(&rows).Error
	return rows, err
}

// FindAnyByID loads a product regardless of its active flag.
func (r *Repository) FindAnyByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// AdminList returns every product newest first, optionally filtered by the
// active flag.
func (r *Repository) AdminList(ctx context.Context, active *bool, params pagination.Params) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if active != nil {
		query = query.Where("is_active = ?", *active)
	}
	page, err := pagination.Keyset(params)
	if err != nil {
		return nil, err
	}

	var rows []models.Product
	err = query.Scopes(page).Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Save writes every column of an existing product.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("name", "brand", "description", "image_url", "price_paise", "moq", "additional_charges", "in_stock", "is_active", "updated_at").
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
