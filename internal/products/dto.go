package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/pagination"
	"github.com/horologe/storefront-backend/pkg/types"
)

// ListFilters narrows the public listing.
type ListFilters struct {
	Brand       string `json:"brand,omitempty"`
	InStockOnly bool   `json:"in_stock,omitempty"`
}

// ProductDTO is the storefront view of a product.
type ProductDTO struct {
	ID                uuid.UUID               `json:"id"`
	Name              string                  `json:"name"`
	Brand             string                  `json:"brand"`
	Description       *string                 `json:"description,omitempty"`
	ImageURL          *string                 `json:"image_url,omitempty"`
	Price             money.Paise             `json:"price"`
	MOQ               int                     `json:"moq"`
	AdditionalCharges types.AdditionalCharges `json:"additional_charges"`
	InStock           bool                    `json:"in_stock"`
	CreatedAt         time.Time               `json:"created_at"`
}

// AdminProductDTO adds back office fields to the storefront view.
type AdminProductDTO struct {
	ProductDTO
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminProductList is one page of the back office listing.
type AdminProductList = pagination.Page[AdminProductDTO]

// ProductInput is the full product payload accepted by create and update.
type ProductInput struct {
	Name              string                  `json:"name" validate:"required,max=200"`
	Brand             string                  `json:"brand" validate:"required,max=80"`
	Description       *string                 `json:"description" validate:"omitempty,max=4000"`
	ImageURL          *string                 `json:"image_url" validate:"omitempty,url,max=2048"`
	Price             money.Paise             `json:"price" validate:"gt=0"`
	MOQ               int                     `json:"moq" validate:"omitempty,min=1,max=1000"`
	AdditionalCharges types.AdditionalCharges `json:"additional_charges"`
	InStock           bool                    `json:"in_stock"`
	IsActive          *bool                   `json:"is_active"`
}

// ProductListResult is one page of the public listing.
type ProductListResult = pagination.Page[ProductDTO]

func toDTO(p models.Product) ProductDTO {
	charges := p.AdditionalCharges
	if charges == nil {
		charges = types.AdditionalCharges{}
	}
	return ProductDTO{
		ID:                p.ID,
		Name:              p.Name,
		Brand:             p.Brand,
		Description:       p.Description,
		ImageURL:          p.ImageURL,
		Price:             p.Price,
		MOQ:               p.EffectiveMOQ(),
		AdditionalCharges: charges,
		InStock:           p.InStock,
		CreatedAt:         p.CreatedAt,
	}
}

func toAdminDTO(p models.Product) AdminProductDTO {
	return AdminProductDTO{ProductDTO: toDTO(p), IsActive: p.IsActive, UpdatedAt: p.UpdatedAt}
}
