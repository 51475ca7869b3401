package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/db/models"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/pagination"
	"github.com/horologe/storefront-backend/pkg/types"
)

const maxAdditionalCharges = 10

type catalogStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindAnyByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Product, error)
	AdminList(ctx context.Context, active *bool, params pagination.Params) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
}

// Service exposes the storefront catalog and its back office management.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ProductListResult, error)

	AdminGet(ctx context.Context, id uuid.UUID) (*AdminProductDTO, error)
	AdminList(ctx context.Context, active *bool, params pagination.Params) (*AdminProductList, error)
	Create(ctx context.Context, input ProductInput) (*AdminProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*AdminProductDTO, error)
	// Archive hides a product from the storefront. Order history keeps
	// referencing it, so rows are never deleted.
	Archive(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo catalogStore
	now  func() time.Time
}

// NewService builds the catalog service.
func NewService(repo catalogStore) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ProductListResult, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list products")
	}
	dtos := make([]ProductDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toDTO(row)
	}
	page := pagination.Trim(dtos, params.Limit, func(p ProductDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func (s *service) AdminGet(ctx context.Context, id uuid.UUID) (*AdminProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	row, err := s.repo.FindAnyByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := toAdminDTO(*row)
	return &dto, nil
}

func (s *service) AdminList(ctx context.Context, active *bool, params pagination.Params) (*AdminProductList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.AdminList(ctx, active, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list products")
	}
	dtos := make([]AdminProductDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toAdminDTO(row)
	}
	page := pagination.Trim(dtos, params.Limit, func(p AdminProductDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page, nil
}

func (s *service) Create(ctx context.Context, input ProductInput) (*AdminProductDTO, error) {
	row := &models.Product{IsActive: true}
	if err := applyInput(row, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create product")
	}
	dto := toAdminDTO(*row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*AdminProductDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	row, err := s.repo.FindAnyByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	if err := applyInput(row, input); err != nil {
		return nil, err
	}
	row.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, mapLoadError(err)
	}
	dto := toAdminDTO(*row)
	return &dto, nil
}

func (s *service) Archive(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	row, err := s.repo.FindAnyByID(ctx, id)
	if err != nil {
		return mapLoadError(err)
	}
	if !row.IsActive {
		return nil
	}
	row.IsActive = false
	row.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, row); err != nil {
		return mapLoadError(err)
	}
	return nil
}

func applyInput(row *models.Product, input ProductInput) error {
	name := strings.TrimSpace(input.Name)
	brand := strings.TrimSpace(input.Brand)
	if name == "" || brand == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name and brand are required")
	}
	if input.Price <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	charges, err := normalizeCharges(input.AdditionalCharges)
	if err != nil {
		return err
	}

	row.Name = name
	row.Brand = brand
	row.Description = trimmedOrNil(input.Description)
	row.ImageURL = trimmedOrNil(input.ImageURL)
	row.Price = input.Price
	row.MOQ = input.MOQ
	if row.MOQ < 1 {
		row.MOQ = 1
	}
	row.AdditionalCharges = charges
	row.InStock = input.InStock
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}
	return nil
}

func normalizeCharges(in types.AdditionalCharges) (types.AdditionalCharges, error) {
	if len(in) > maxAdditionalCharges {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d additional charges allowed", maxAdditionalCharges)
	}
	out := make(types.AdditionalCharges, 0, len(in))
	for _, charge := range in {
		charge.Name = strings.TrimSpace(charge.Name)
		if charge.Name == "" || charge.Amount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each additional charge needs a name and a non-negative amount")
		}
		out = append(out, charge)
	}
	return out, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLoadError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load product")
}
