package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/pagination"
)

// ErrNotFound is returned when an order lookup misses.
var ErrNotFound = errors.New("order not found")

const trackLimit = 50

// Repository defines persistence operations for orders and order items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpfrontOrderClaimed(ctx context.Context, upfrontOrderID uuid.UUID) (bool, error)
	SetRazorpayOrderID(ctx context.Context, id uuid.UUID, razorpayOrderID string) error
	ConfirmPayment(ctx context.Context, id uuid.UUID, paymentID string) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	ListByPhone(ctx context.Context, digits string) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Product").Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByCreated).
		Preload("Items.Product").
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpfrontOrderClaimed reports whether any order already references the upfront
// charge.
func (r *repository) UpfrontOrderClaimed(ctx context.Context, upfrontOrderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("upfront_order_id = ?", upfrontOrderID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) SetRazorpayOrderID(ctx context.Context, id uuid.UUID, razorpayOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"razorpay_order_id": razorpayOrderID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

// ConfirmPayment stores the gateway payment id and flips a pending order to
// confirmed. It reports false when the order was no longer pending.
func (r *repository) ConfirmPayment(ctx context.Context, id uuid.UUID, paymentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"razorpay_payment_id": paymentID,
			"status":              enums.OrderStatusConfirmed,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionStatus moves the order from one status to another, guarded on the
// current value so concurrent updates cannot skip a step.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByPhone returns orders whose stored phone digits contain digits, newest first.
func (r *repository) ListByPhone(ctx context.Context, digits string) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", orderItemsByCreated).
		Preload("Items.Product").
		Where("customer_phone LIKE ?", "%"+digits+"%").
		Order("created_at DESC").
		Order("id DESC").
		Limit(trackLimit).
		Find(&rows).Error
	return rows, err
}

// ListPendingBefore returns orders still awaiting payment that were created
// before cutoff, oldest first.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items", orderItemsByCreated).
		Preload("Items.Product")
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}

	page, err := pagination.Keyset(params)
	if err != nil {
		return nil, err
	}

	var rows []models.Order
	err = query.Scopes(page).Find(&rows).Error
	return rows, err
}

func orderItemsByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
