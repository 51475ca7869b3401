package coupons

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/money"
)

var (
	// ErrNotFound is returned when no coupon matches.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageExhausted is returned when a coupon has no uses left.
	ErrUsageExhausted = errors.New("coupon usage limit reached")
)

// Repository defines persistence operations for coupons and their usage.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	Save(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	RecordUsage(ctx context.Context, couponID, orderID uuid.UUID, discount money.Paise) error
	ReleaseUsage(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupons repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByCode expects an upper-cased code.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) List(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&coupons).Error
	return coupons, err
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

// Save writes every column, including NULLs and false flags.
func (r *repository) Save(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Save(coupon).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Coupon{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUsage claims one use and stores the redemption. The claim is a single
// conditional update, so concurrent orders cannot push current_uses past
// max_uses.
func (r *repository) RecordUsage(ctx context.Context, couponID, orderID uuid.UUID, discount money.Paise) error {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (max_uses IS NULL OR current_uses < max_uses)", couponID).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUsageExhausted
	}
	usage := models.CouponUsage{CouponID: couponID, OrderID: orderID, DiscountAmount: discount}
	return r.db.WithContext(ctx).Create(&usage).Error
}

// ReleaseUsage deletes the redemption booked by orderID and gives the use
// back. ErrNotFound means the order holds no redemption.
func (r *repository) ReleaseUsage(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, error) {
	var usage models.CouponUsage
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Where("id = ?", usage.ID).Delete(&models.CouponUsage{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	err = r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND current_uses > 0", usage.CouponID).
		UpdateColumn("current_uses", gorm.Expr("current_uses - 1")).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}
