package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/enums"
)

// ContactQuery is a message left through the storefront help page.
type ContactQuery struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string              `gorm:"column:name;not null"`
	Email     string              `gorm:"column:email;not null"`
	Subject   string              `gorm:"column:subject;not null"`
	Message   string              `gorm:"column:message;not null"`
	Status    enums.InquiryStatus `gorm:"column:status;type:inquiry_status;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (ContactQuery) TableName() string { return "contact_queries" }

func (q *ContactQuery) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
