package inquiries

import (
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/pagination"
)

// SubmitInput is what a shopper sends from the help page.
type SubmitInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// ListFilters narrows the admin inquiry listing.
type ListFilters struct {
	Status *enums.InquiryStatus
}

type InquiryDTO struct {
	ID        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Email     string              `json:"email"`
	Subject   string              `json:"subject"`
	Message   string              `json:"message"`
	Status    enums.InquiryStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type InquiryList = pagination.Page[InquiryDTO]

func toDTO(row models.ContactQuery) InquiryDTO {
	return InquiryDTO{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Subject:   row.Subject,
		Message:   row.Message,
		Status:    row.Status,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toDTOs(rows []models.ContactQuery) []InquiryDTO {
	out := make([]InquiryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out
}
