package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service validates coupon codes and backs the admin coupon screens.
type Service interface {
	Validate(ctx context.Context, code string, orderTotal money.Paise) (Validation, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string, orderID uuid.UUID, discount money.Paise) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (string, error)
	Invalidate(ctx context.Context, code string)
	List(ctx context.Context) ([]CouponDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CouponDTO, error)
	Create(ctx context.Context, input CouponInput) (*CouponDTO, error)
	Update(ctx context.Context, id uuid.UUID, input CouponInput) (*CouponDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repository
	cache  *Cache
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the coupon service. cache may be nil.
func NewService(repo Repository, cache *Cache, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		cache:  cache,
		outbox: publisher,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Validate implements validate_coupon. Unknown codes are a normal invalid
// result; only lookup failures return an error.
func (s *service) Validate(ctx context.Context, code string, orderTotal money.Paise) (Validation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return invalid(MsgInvalidCode), nil
	}
	coupon, err := s.lookup(ctx, code)
	if err != nil {
		return Validation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to validate coupon")
	}
	return Evaluate(coupon, orderTotal, s.now()), nil
}

func (s *service) lookup(ctx context.Context, code string) (*models.Coupon, error) {
	cached, err := s.cache.Get(ctx, code)
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "coupon_code", code), "coupon cache read failed: "+err.Error())
	}
	if cached != nil {
		return cached, nil
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, coupon); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "coupon_code", code), "coupon cache write failed: "+err.Error())
	}
	return coupon, nil
}

// Redeem claims a coupon use inside the order transaction. Unknown codes are
// ignored; the discount was already agreed at checkout. A coupon with no uses
// left fails validation and the order is not placed.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string, orderID uuid.UUID, discount money.Paise) error {
	code = NormalizeCode(code)
	if code == "" {
		return nil
	}
	repo := s.repo.WithTx(tx)
	coupon, err := repo.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load coupon")
	}
	if err := repo.RecordUsage(ctx, coupon.ID, orderID, discount); err != nil {
		if errors.Is(err, ErrUsageExhausted) {
			return pkgerrors.New(pkgerrors.CodeValidation, MsgUsageExceeded).
				WithDetails(map[string]any{"coupon_code": code})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to record coupon usage")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCouponRedeemed,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   coupon.ID,
		Actor:         outbox.Shopper(),
		Data: payloads.CouponRedeemedEvent{
			CouponID:       coupon.ID,
			Code:           coupon.Code,
			OrderID:        orderID,
			DiscountAmount: discount,
		},
	})
}

// Release returns the use booked by a cancelled order and reports the coupon
// code so callers can invalidate its cache entry. Orders without a coupon
// release nothing and return an empty code.
func (s *service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (string, error) {
	repo := s.repo.WithTx(tx)
	usage, err := repo.ReleaseUsage(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to release coupon usage")
	}
	coupon, err := repo.FindByID(ctx, usage.CouponID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load coupon")
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCouponReleased,
		AggregateType: enums.AggregateCoupon,
		AggregateID:   coupon.ID,
		Actor:         outbox.System(),
		Data: payloads.CouponReleasedEvent{
			CouponID:       coupon.ID,
			Code:           coupon.Code,
			OrderID:        orderID,
			DiscountAmount: usage.DiscountAmount,
			ReleasedAt:     s.now(),
		},
	})
	if err != nil {
		return "", err
	}
	return coupon.Code, nil
}

// Invalidate drops the cached row so the next lookup sees fresh usage counts.
func (s *service) Invalidate(ctx context.Context, code string) {
	if err := s.cache.Invalidate(ctx, NormalizeCode(code)); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "coupon_code", code), "coupon cache invalidation failed: "+err.Error())
	}
}

func (s *service) List(ctx context.Context) ([]CouponDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list coupons")
	}
	out := make([]CouponDTO, len(rows))
	for i, row := range rows {
		out[i] = toDTO(row)
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CouponDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, input CouponInput) (*CouponDTO, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	row := &models.Coupon{IsActive: true}
	applyInput(row, input)
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, mapWriteError(err)
	}
	s.Invalidate(ctx, row.Code)
	dto := toDTO(*row)
	return &dto, nil
}

// Update replaces every editable field. Usage counters are left alone.
func (s *service) Update(ctx context.Context, id uuid.UUID, input CouponInput) (*CouponDTO, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	previousCode := row.Code
	applyInput(row, input)
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, mapWriteError(err)
	}
	s.Invalidate(ctx, previousCode)
	s.Invalidate(ctx, row.Code)
	dto := toDTO(*row)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapLookupError(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapLookupError(err)
	}
	s.Invalidate(ctx, row.Code)
	return nil
}

func validateInput(input *CouponInput) error {
	input.Code = NormalizeCode(input.Code)
	if input.Code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon name is required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid coupon type")
	}
	if input.Value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon value must be >= 0")
	}
	if input.Type == enums.CouponTypePercentage && input.Value.GreaterThan(decimal.NewFromInt(100)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage must be between 0 and 100")
	}
	if input.CapAmount != nil && *input.CapAmount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cap amount must be >= 0")
	}
	if input.MinimumOrderAmount != nil && *input.MinimumOrderAmount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount must be >= 0")
	}
	if input.MaxUses != nil && *input.MaxUses <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "max uses must be positive")
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && input.ValidUntil.Before(*input.ValidFrom) {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
	}
	return nil
}

func applyInput(row *models.Coupon, input CouponInput) {
	row.Code = input.Code
	row.Name = input.Name
	row.Description = input.Description
	row.Type = input.Type
	row.Value = input.Value
	row.CapAmount = input.CapAmount
	row.MinimumOrderAmount = input.MinimumOrderAmount
	row.MaxUses = input.MaxUses
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}
	row.ValidFrom = input.ValidFrom
	row.ValidUntil = input.ValidUntil
}

func mapLookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load coupon")
}

func mapWriteError(err error) error {
	if dbpkg.IsUniqueViolation(err, "") {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save coupon")
}
