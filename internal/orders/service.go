package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/outbox/payloads"
	"github.com/horologe/storefront-backend/pkg/pagination"
	"github.com/horologe/storefront-backend/pkg/razorpay"
	"github.com/horologe/storefront-backend/pkg/types"
)

const (
	minTrackPhoneLen   = 10
	defaultExpireBatch = 100

	upfrontClaimConstraint = "ux_orders_upfront_order_id"
	msgUpfrontClaimed      = "upfront charge is already linked to another order"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type catalog interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// CouponRedeemer books and releases coupon usage inside order transactions.
type CouponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string, orderID uuid.UUID, discount money.Paise) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (string, error)
	Invalidate(ctx context.Context, code string)
}

// Service implements the order endpoints used by checkout, tracking and admin.
type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResponse, error)
	Track(ctx context.Context, phone string) ([]OrderDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Options holds the service knobs taken from config.
type Options struct {
	RequireSignature bool
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	products catalog
	coupons  CouponRedeemer
	gateway  razorpay.Gateway
	logg     *logger.Logger
	opts     Options
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, products catalog, coupons CouponRedeemer, gateway razorpay.Gateway, logg *logger.Logger, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon redeemer required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		products: products,
		coupons:  coupons,
		gateway:  gateway,
		logg:     logg,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder persists the order and, for legs paid online, opens a gateway
// order for its total. A gateway failure cancels the persisted order.
func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if err := validateCreate(&req); err != nil {
		return nil, err
	}

	order := buildOrder(req)
	var items []models.OrderItem
	if !req.CODShippingOnly {
		var err error
		items, err = s.buildItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if req.UpfrontOrderID != nil {
			if err := checkUpfrontOrder(ctx, repo, *req.UpfrontOrderID); err != nil {
				return err
			}
		}
		if err := repo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, upfrontClaimConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, msgUpfrontClaimed)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create order items")
		}
		if order.CouponCode != nil {
			if err := s.coupons.Redeem(ctx, tx, *order.CouponCode, order.ID, order.DiscountAmount); err != nil {
				if pkgerrors.As(err) != nil {
					return err
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to redeem coupon")
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.Shopper(),
			Data: payloads.OrderCreatedEvent{
				OrderID:        order.ID,
				Kind:           order.Kind,
				PaymentMethod:  order.PaymentMethod,
				Status:         order.Status,
				TotalAmount:    order.TotalAmount,
				DiscountAmount: order.DiscountAmount,
				CouponCode:     order.CouponCode,
				ItemCount:      len(items),
				UpfrontPaid:    order.UpfrontPaid,
				UpfrontOrderID: order.UpfrontOrderID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if order.CouponCode != nil {
		s.coupons.Invalidate(ctx, *order.CouponCode)
	}

	ctx = s.withOrder(ctx, order.ID)
	resp := &CreateOrderResponse{OrderID: order.ID}
	if order.PaymentMethod == enums.PaymentMethodCOD && !order.IsUpfrontCharges() {
		s.info(ctx, "cod order placed")
		return resp, nil
	}

	gwOrder, gwErr := s.gateway.CreateOrder(ctx, razorpay.CreateOrderInput{
		Amount:  order.TotalAmount,
		Receipt: order.ID.String(),
		Notes:   map[string]string{"kind": order.Kind.String()},
	})
	if gwErr != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "gateway order creation failed", gwErr)
		}
		if err := s.cancelAfterGatewayFailure(ctx, order, gwErr); err != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to cancel order after gateway failure", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, gwErr, "failed to create payment order")
	}

	if err := s.repo.SetRazorpayOrderID(ctx, order.ID, gwOrder.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to store payment order")
	}

	resp.RazorpayOrderID = gwOrder.ID
	resp.Amount = gwOrder.Amount.Int64()
	if resp.Amount == 0 {
		resp.Amount = order.TotalAmount.Int64()
	}
	resp.Currency = gwOrder.Currency
	if resp.Currency == "" {
		resp.Currency = money.Currency
	}
	resp.Key = s.gateway.KeyID()
	s.info(ctx, "gateway order created")
	return resp, nil
}

func (s *service) cancelAfterGatewayFailure(ctx context.Context, order *models.Order, cause error) error {
	var released string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}
		code, err := s.coupons.Release(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		released = code
		return s.outbox.EmitOnce(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderGatewayFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.System(),
			Data: payloads.OrderGatewayFailedEvent{
				OrderID:  order.ID,
				Amount:   order.TotalAmount,
				Reason:   cause.Error(),
				FailedAt: s.now(),
			},
		})
	})
	if err != nil {
		return err
	}
	s.invalidateCoupon(ctx, released)
	return nil
}

func (s *service) invalidateCoupon(ctx context.Context, code string) {
	if code != "" {
		s.coupons.Invalidate(ctx, code)
	}
}

// VerifyPayment confirms a pending order once the gateway callback checks
// out. Repeating a successful verification is a no-op.
func (s *service) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	req.RazorpayOrderID = strings.TrimSpace(req.RazorpayOrderID)
	req.RazorpayPaymentID = strings.TrimSpace(req.RazorpayPaymentID)
	if req.OrderID == uuid.Nil || req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId, razorpayOrderId and razorpayPaymentId are required")
	}
	if req.RazorpaySignature == "" && s.opts.RequireSignature {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature required")
	}
	if req.RazorpaySignature != "" && !s.gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment verification failed")
	}

	ctx = s.withOrder(ctx, req.OrderID)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
		}
		if order.RazorpayOrderID == nil || *order.RazorpayOrderID != req.RazorpayOrderID {
			return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment does not match order")
		}
		if order.Status == enums.OrderStatusConfirmed && order.RazorpayPaymentID != nil && *order.RazorpayPaymentID == req.RazorpayPaymentID {
			return nil
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s and cannot be verified", order.Status)
		}

		updated, err := repo.ConfirmPayment(ctx, order.ID, req.RazorpayPaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to confirm order")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed during verification")
		}
		return s.outbox.EmitOnce(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentVerified,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.Shopper(),
			Data: payloads.OrderPaymentVerifiedEvent{
				OrderID:           order.ID,
				Kind:              order.Kind,
				RazorpayOrderID:   req.RazorpayOrderID,
				RazorpayPaymentID: req.RazorpayPaymentID,
				Amount:            order.TotalAmount,
				VerifiedAt:        s.now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, "payment verified")
	return &VerifyPaymentResponse{Success: true}, nil
}

// Track lists orders for a shipping phone number. Short inputs return nothing.
func (s *service) Track(ctx context.Context, phone string) ([]OrderDTO, error) {
	phone = strings.TrimSpace(phone)
	if len(phone) < minTrackPhoneLen {
		return []OrderDTO{}, nil
	}
	digits := types.PhoneDigits(phone)
	if digits == "" {
		return []OrderDTO{}, nil
	}
	rows, err := s.repo.ListByPhone(ctx, digits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load orders")
	}
	return toDTOs(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	dto := toDTO(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list orders")
	}
	page := pagination.Trim(toDTOs(rows), params.Limit, func(o OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

// UpdateStatus advances an order along the admin lifecycle.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	ctx = s.withOrder(ctx, id)
	var released string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
		}
		if order.Status == status {
			return nil
		}
		if order.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", order.Status)
		}
		if !order.Status.CanTransitionTo(status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, status)
		}
		updated, err := repo.TransitionStatus(ctx, id, order.Status, status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to update order status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		if status == enums.OrderStatusCancelled {
			if released, err = s.coupons.Release(ctx, tx, id); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Actor:         outbox.ActorFromContext(ctx, outbox.Admin("")),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       id,
				Kind:          order.Kind,
				PaymentMethod: order.PaymentMethod,
				TotalAmount:   order.TotalAmount,
				From:          order.Status,
				To:            status,
				ChangedAt:     s.now(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidateCoupon(ctx, released)
	return s.Get(ctx, id)
}

// ExpireUnpaid cancels orders whose gateway payment never arrived. Orders that
// move on concurrently are skipped.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultExpireBatch
	}
	stale, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list pending orders")
	}

	expired := 0
	for _, order := range stale {
		orderCtx := s.withOrder(ctx, order.ID)
		var (
			updated  bool
			released string
		)
		err := s.tx.WithTx(orderCtx, func(tx *gorm.DB) error {
			var err error
			updated, err = s.repo.WithTx(tx).TransitionStatus(orderCtx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
			if err != nil || !updated {
				return err
			}
			if released, err = s.coupons.Release(orderCtx, tx, order.ID); err != nil {
				return err
			}
			return s.outbox.Emit(orderCtx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         outbox.System(),
				Data: payloads.OrderStatusChangedEvent{
					OrderID:       order.ID,
					Kind:          order.Kind,
					PaymentMethod: order.PaymentMethod,
					TotalAmount:   order.TotalAmount,
					From:          enums.OrderStatusPending,
					To:            enums.OrderStatusCancelled,
					ChangedAt:     s.now(),
				},
			})
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to expire order")
		}
		if updated {
			expired++
			s.invalidateCoupon(orderCtx, released)
			s.info(orderCtx, "unpaid order expired")
		}
	}
	return expired, nil
}

func validateCreate(req *CreateOrderRequest) error {
	req.ShippingAddress = req.ShippingAddress.Normalize()
	if !req.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "paymentMethod must be online or cod")
	}
	if req.TotalAmount < 0 || req.DiscountAmount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amounts must be >= 0")
	}
	if len(types.PhoneDigits(req.ShippingAddress.Phone)) < minTrackPhoneLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "a valid shipping phone number is required")
	}
	if req.CouponCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.CouponCode))
		if code == "" {
			req.CouponCode = nil
		} else {
			req.CouponCode = &code
		}
	}

	if req.CODShippingOnly {
		if req.PaymentMethod != enums.PaymentMethodCOD {
			return pkgerrors.New(pkgerrors.CodeValidation, "codShippingOnly requires paymentMethod cod")
		}
		if req.TotalAmount <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "upfront charge must be positive")
		}
		if req.CODShippingUpfrontPaid || req.UpfrontOrderID != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "codShippingOnly cannot reference an upfront order")
		}
		return nil
	}

	if len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order items required")
	}
	for _, item := range req.Items {
		if item.ID == uuid.Nil || item.Quantity <= 0 || item.Price < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "each item needs an id, a positive quantity and a price")
		}
	}
	if req.PaymentMethod == enums.PaymentMethodOnline {
		if req.TotalAmount <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "online payment amount must be positive")
		}
		if req.CODShippingUpfrontPaid || req.UpfrontOrderID != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "upfront payment markers apply to cod orders only")
		}
	}
	if req.UpfrontOrderID != nil && !req.CODShippingUpfrontPaid {
		return pkgerrors.New(pkgerrors.CodeValidation, "upfrontOrderId requires codShippingUpfrontPaid")
	}
	return nil
}

func buildOrder(req CreateOrderRequest) *models.Order {
	order := &models.Order{
		Kind:            enums.OrderKindStandard,
		PaymentMethod:   req.PaymentMethod,
		Status:          enums.OrderStatusPending,
		TotalAmount:     req.TotalAmount,
		DiscountAmount:  req.DiscountAmount,
		CouponCode:      req.CouponCode,
		ShippingAddress: req.ShippingAddress,
		CustomerPhone:   types.PhoneDigits(req.ShippingAddress.Phone),
		UpfrontPaid:     req.CODShippingUpfrontPaid,
		UpfrontOrderID:  req.UpfrontOrderID,
	}
	switch {
	case req.CODShippingOnly:
		order.Kind = enums.OrderKindUpfrontCharges
		order.DiscountAmount = 0
		order.CouponCode = nil
	case req.PaymentMethod == enums.PaymentMethodCOD:
		order.Status = enums.OrderStatusConfirmed
	}
	return order
}

func (s *service) buildItems(ctx context.Context, reqItems []CreateOrderItem) ([]models.OrderItem, error) {
	ids := make([]uuid.UUID, 0, len(reqItems))
	for _, item := range reqItems {
		ids = append(ids, item.ID)
	}
	found, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load products")
	}
	items := make([]models.OrderItem, 0, len(reqItems))
	for _, item := range reqItems {
		if _, ok := found[item.ID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product in order").
				WithDetails(map[string]any{"product_id": item.ID})
		}
		items = append(items, models.OrderItem{
			ProductID: item.ID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return items, nil
}

// checkUpfrontOrder makes sure a COD order only references an upfront charge
// that was actually paid.
func checkUpfrontOrder(ctx context.Context, repo Repository, id uuid.UUID) error {
	upfront, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "upfront order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load upfront order")
	}
	if !upfront.IsUpfrontCharges() {
		return pkgerrors.New(pkgerrors.CodeValidation, "upfrontOrderId does not reference an upfront charge")
	}
	if upfront.Status != enums.OrderStatusConfirmed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "upfront charge has not been verified")
	}
	claimed, err := repo.UpfrontOrderClaimed(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check upfront order")
	}
	if claimed {
		return pkgerrors.New(pkgerrors.CodeConflict, msgUpfrontClaimed).
			WithDetails(map[string]any{"upfront_order_id": id})
	}
	return nil
}

func (s *service) withOrder(ctx context.Context, id uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderID(ctx, id.String())
}

func (s *service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
