package inquiries

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/pagination"
)

// Service accepts help-page messages and lets admins triage them.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*InquiryDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*InquiryList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.InquiryStatus) (*InquiryDTO, error)
}

type service struct {
	repo     Repository
	logg     *logger.Logger
	validate *validator.Validate
}

// NewService wires inquiry dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inquiries repository required")
	}
	return &service{repo: repo, logg: logg, validate: validator.New()}, nil
}

// Submit stores a new inquiry. Every inquiry starts pending.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*InquiryDTO, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Subject = strings.TrimSpace(input.Subject)
	input.Message = strings.TrimSpace(input.Message)
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid inquiry")
	}

	row := &models.ContactQuery{
		Name:    input.Name,
		Email:   input.Email,
		Subject: input.Subject,
		Message: input.Message,
		Status:  enums.InquiryStatusPending,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to store inquiry")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"inquiry_id": row.ID.String(),
			"email":      row.Email,
		}), "contact inquiry received")
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*InquiryList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid inquiry status")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list inquiries")
	}
	page := pagination.Trim(toDTOs(rows), params.Limit, func(q InquiryDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: q.CreatedAt, ID: q.ID}
	})
	return &page, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.InquiryStatus) (*InquiryDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inquiry id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid inquiry status")
	}

	found, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update inquiry")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inquiry not found")
	}

	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inquiry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load inquiry")
	}
	dto := toDTO(*row)
	return &dto, nil
}
