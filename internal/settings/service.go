package settings

import (
	"context"
	"fmt"

	"github.com/horologe/storefront-backend/pkg/db/models"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/money"
)

// Service resolves payment settings with their defaults applied.
type Service interface {
	Methods(ctx context.Context) (Methods, error)
	Collection(ctx context.Context) (Collection, error)
	UpdateMethods(ctx context.Context, input Methods) (Methods, error)
	UpdateCollection(ctx context.Context, input UpdateCollectionInput) (Collection, error)
}

// UpdateCollectionInput carries an admin edit. A nil ShippingCharge stores
// NULL, which reads back as the default shipping charge.
type UpdateCollectionInput struct {
	CollectShippingUpfront     bool         `json:"collect_shipping_upfront"`
	CollectOtherChargesUpfront bool         `json:"collect_other_charges_upfront"`
	ShippingCharge             *money.Paise `json:"shipping_charge"`
}

type service struct {
	repo            Repository
	defaultShipping money.Paise
}

// NewService builds the settings service. defaultShipping applies when no row
// exists or its shipping charge is NULL.
func NewService(repo Repository, defaultShipping money.Paise) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if defaultShipping < 0 {
		return nil, fmt.Errorf("default shipping must be >= 0")
	}
	return &service{repo: repo, defaultShipping: defaultShipping}, nil
}

func (s *service) Methods(ctx context.Context) (Methods, error) {
	row, err := s.repo.FindPaymentSettings(ctx)
	if err != nil {
		return Methods{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load payment settings")
	}
	if row == nil {
		return DefaultMethods(), nil
	}
	return Methods{CODEnabled: row.CODEnabled, OnlinePaymentEnabled: row.OnlinePaymentEnabled}, nil
}

func (s *service) Collection(ctx context.Context) (Collection, error) {
	row, err := s.repo.FindCollectionSettings(ctx)
	if err != nil {
		return Collection{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load payment collection settings")
	}
	return s.collectionFromRow(row), nil
}

func (s *service) collectionFromRow(row *models.PaymentCollectionSettings) Collection {
	out := Collection{ShippingCharge: s.defaultShipping}
	if row == nil {
		return out
	}
	if row.CollectShippingUpfront != nil {
		out.CollectShippingUpfront = *row.CollectShippingUpfront
	}
	if row.CollectOtherChargesUpfront != nil {
		out.CollectOtherChargesUpfront = *row.CollectOtherChargesUpfront
	}
	// zero is a valid charge, only NULL falls back
	if row.ShippingCharge != nil {
		out.ShippingCharge = *row.ShippingCharge
	}
	return out
}

func (s *service) UpdateMethods(ctx context.Context, input Methods) (Methods, error) {
	if !input.CODEnabled && !input.OnlinePaymentEnabled {
		return Methods{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one payment method must be enabled")
	}
	row := &models.PaymentSettings{
		CODEnabled:           input.CODEnabled,
		OnlinePaymentEnabled: input.OnlinePaymentEnabled,
	}
	if err := s.repo.SavePaymentSettings(ctx, row); err != nil {
		return Methods{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save payment settings")
	}
	return input, nil
}

func (s *service) UpdateCollection(ctx context.Context, input UpdateCollectionInput) (Collection, error) {
	if input.ShippingCharge != nil && *input.ShippingCharge < 0 {
		return Collection{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping charge must be >= 0")
	}
	shipping := input.CollectShippingUpfront
	other := input.CollectOtherChargesUpfront
	row := &models.PaymentCollectionSettings{
		CollectShippingUpfront:     &shipping,
		CollectOtherChargesUpfront: &other,
		ShippingCharge:             input.ShippingCharge,
	}
	if err := s.repo.SaveCollectionSettings(ctx, row); err != nil {
		return Collection{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save payment collection settings")
	}
	return s.collectionFromRow(row), nil
}
