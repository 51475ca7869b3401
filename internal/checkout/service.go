package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/internal/cart"
	"github.com/horologe/storefront-backend/internal/coupons"
	"github.com/horologe/storefront-backend/internal/orders"
	"github.com/horologe/storefront-backend/internal/pricing"
	"github.com/horologe/storefront-backend/internal/settings"
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/redis"
	"github.com/horologe/storefront-backend/pkg/types"
)

const (
	submitLockScope = "checkout_submit"
	stepLockScope   = "checkout_step"

	msgOrderCreationFailed = "failed to create order"
	msgVerificationFailed  = "payment verification failed, please contact support"
	msgReconciliation      = "COD order failed after upfront payment, please contact support"
)

type cartReader interface {
	Get(ctx context.Context, cartID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type couponValidator interface {
	Validate(ctx context.Context, code string, orderTotal money.Paise) (coupons.Validation, error)
}

type settingsReader interface {
	Methods(ctx context.Context) (settings.Methods, error)
	Collection(ctx context.Context) (settings.Collection, error)
}

// Service prices carts and drives the checkout state machine.
type Service interface {
	Quote(ctx context.Context, cartID uuid.UUID, method enums.PaymentMethod) (*QuoteResult, error)
	Submit(ctx context.Context, input SubmitInput) (*Attempt, error)
	ConfirmPayment(ctx context.Context, attemptID uuid.UUID, payment GatewayPayment) (*Attempt, error)
	Dismiss(ctx context.Context, attemptID uuid.UUID) (*Attempt, error)
	Get(ctx context.Context, attemptID uuid.UUID) (*Attempt, error)
}

// SubmitInput starts a checkout for a cart.
type SubmitInput struct {
	CartID          uuid.UUID             `json:"cart_id" validate:"required"`
	Method          enums.PaymentMethod   `json:"payment_method"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
}

// GatewayPayment is the payload of the gateway success callback.
type GatewayPayment struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature"`
}

// QuoteResult is the priced cart for one payment method.
type QuoteResult struct {
	Method           enums.PaymentMethod   `json:"payment_method"`
	AvailableMethods []enums.PaymentMethod `json:"available_methods"`
	Breakdown        pricing.Breakdown     `json:"breakdown"`
	Cart             *cart.Cart            `json:"cart"`
}

// Options carries lock lifetimes.
type Options struct {
	SubmitLockTTL time.Duration
	StepLockTTL   time.Duration
}

type service struct {
	carts    cartReader
	settings settingsReader
	coupons  couponValidator
	orders   OrderClient
	attempts AttemptStore
	locks    redis.Locker
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	validate *validator.Validate
	opts     Options
	now      func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(carts cartReader, settingsSvc settingsReader, couponSvc couponValidator, orderClient OrderClient, attempts AttemptStore, locks redis.Locker, m *metrics.CheckoutMetrics, logg *logger.Logger, opts Options) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if settingsSvc == nil {
		return nil, fmt.Errorf("settings service required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if orderClient == nil {
		return nil, fmt.Errorf("order client required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt store required")
	}
	if locks == nil {
		return nil, fmt.Errorf("locker required")
	}
	if opts.SubmitLockTTL <= 0 || opts.StepLockTTL <= 0 {
		return nil, fmt.Errorf("lock ttls must be positive")
	}
	return &service{
		carts:    carts,
		settings: settingsSvc,
		coupons:  couponSvc,
		orders:   orderClient,
		attempts: attempts,
		locks:    locks,
		metrics:  m,
		logg:     logg,
		validate: validator.New(),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Quote prices the cart for method. With no method given and both enabled,
// the first available method is quoted.
func (s *service) Quote(ctx context.Context, cartID uuid.UUID, method enums.PaymentMethod) (*QuoteResult, error) {
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshCoupon(ctx, c); err != nil {
		return nil, err
	}
	methods, err := s.settings.Methods(ctx)
	if err != nil {
		return nil, err
	}
	available := methods.Available()
	if method == "" && len(available) > 0 {
		method = available[0]
	}
	resolved, err := methods.ResolveMethod(method)
	if err != nil {
		return nil, err
	}
	collection, err := s.settings.Collection(ctx)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{
		Method:           resolved,
		AvailableMethods: available,
		Breakdown:        priceCart(c, collection, resolved),
		Cart:             c,
	}, nil
}

// refreshCoupon re-evaluates the applied coupon against the current subtotal
// and reprices it. A coupon that no longer qualifies fails with the evaluator
// message and the cart is left for the shopper to fix.
func (s *service) refreshCoupon(ctx context.Context, c *cart.Cart) error {
	code := c.CouponCode()
	if code == "" {
		return nil
	}
	result, err := s.coupons.Validate(ctx, code, c.Subtotal())
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to validate coupon")
	}
	if !result.IsValid {
		return pkgerrors.New(pkgerrors.CodeValidation, result.Message).
			WithDetails(map[string]any{"coupon_code": code})
	}
	refreshed := *c.Coupon
	refreshed.DiscountAmount = result.DiscountAmount
	refreshed.Message = result.Message
	if result.CouponData != nil {
		refreshed.FreeDelivery = result.CouponData.FreeDelivery
	}
	c.Coupon = &refreshed
	return nil
}

func priceCart(c *cart.Cart, collection settings.Collection, method enums.PaymentMethod) pricing.Breakdown {
	return pricing.Quote(pricing.QuoteInput{
		Lines:        c.PricingLines(),
		Discount:     c.Discount(),
		FreeDelivery: c.FreeDelivery(),
		Collection:   collection,
		Method:       method,
	})
}

// Submit validates locally, takes the per-cart submission lock and issues
// the first create-order call for the chosen path.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*Attempt, error) {
	if input.CartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	address := input.ShippingAddress.Normalize()
	if err := s.validate.Struct(address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	c, err := s.carts.Get(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if err := s.refreshCoupon(ctx, c); err != nil {
		return nil, err
	}
	methods, err := s.settings.Methods(ctx)
	if err != nil {
		return nil, err
	}
	method, err := methods.ResolveMethod(input.Method)
	if err != nil {
		return nil, err
	}
	collection, err := s.settings.Collection(ctx)
	if err != nil {
		return nil, err
	}
	breakdown := priceCart(c, collection, method)

	now := s.now()
	attempt := &Attempt{
		ID:              uuid.New(),
		CartID:          c.ID,
		State:           StateIdle,
		Method:          method,
		Breakdown:       breakdown,
		ShippingAddress: address,
		Items:           orderItems(c),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if code := c.CouponCode(); code != "" {
		attempt.CouponCode = &code
	}
	ctx = s.withAttempt(ctx, attempt)

	acquired, err := s.locks.AcquireLock(ctx, s.submitLockKey(c.ID), attempt.ID.String(), s.opts.SubmitLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to acquire checkout lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}

	event, req := s.firstLeg(attempt)
	resp, err := s.createOrder(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, attempt, FailureOrderCreation, serverMessage(err, msgOrderCreationFailed), err)
	}

	switch event {
	case EventSubmitCODUpfront:
		attempt.TrackingOrderID = &resp.OrderID
	default:
		attempt.OrderID = &resp.OrderID
	}
	if resp.RequiresPayment() {
		attempt.Gateway = &GatewayHandle{
			OrderID:  resp.RazorpayOrderID,
			Amount:   resp.Amount,
			Currency: resp.Currency,
			Key:      resp.Key,
		}
	}
	if err := s.advance(ctx, attempt, event); err != nil {
		s.releaseSubmitLock(ctx, attempt)
		return nil, err
	}
	if attempt.State == StateOrderPlaced {
		s.finish(ctx, attempt)
	}
	return attempt, nil
}

// firstLeg picks the submit event and builds the first create-order call.
func (s *service) firstLeg(a *Attempt) (Event, orders.CreateOrderRequest) {
	b := a.Breakdown
	switch {
	case a.Method == enums.PaymentMethodOnline:
		return EventSubmitOnline, s.realOrderRequest(a, b.TotalAmount)
	case b.RequiresUpfrontPayment():
		return EventSubmitCODUpfront, orders.CreateOrderRequest{
			Items:           []orders.CreateOrderItem{},
			ShippingAddress: a.ShippingAddress,
			TotalAmount:     b.PayableNow,
			PaymentMethod:   enums.PaymentMethodCOD,
			CODShippingOnly: true,
		}
	default:
		return EventSubmitCOD, s.realOrderRequest(a, b.TotalAmount)
	}
}

func (s *service) realOrderRequest(a *Attempt, total money.Paise) orders.CreateOrderRequest {
	return orders.CreateOrderRequest{
		Items:           a.Items,
		ShippingAddress: a.ShippingAddress,
		TotalAmount:     total,
		PaymentMethod:   a.Method,
		CouponCode:      a.CouponCode,
		DiscountAmount:  a.Breakdown.DiscountAmount,
	}
}

// ConfirmPayment handles the gateway success callback for an attempt.
func (s *service) ConfirmPayment(ctx context.Context, attemptID uuid.UUID, payment GatewayPayment) (*Attempt, error) {
	if attemptID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt id required")
	}
	if strings.TrimSpace(payment.OrderID) == "" || strings.TrimSpace(payment.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay_order_id and razorpay_payment_id are required")
	}

	release, err := s.acquireStepLock(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	defer release()

	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	ctx = s.withAttempt(ctx, attempt)

	if attempt.State == StateOrderPlaced {
		return attempt, nil
	}
	if !attempt.State.IsAwaitingPayment() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "checkout is %s, no payment expected", attempt.State)
	}
	if attempt.Gateway == nil || attempt.Gateway.OrderID != payment.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to this checkout")
	}

	payingFor := attempt.OrderID
	if attempt.State == StateAwaitingUpfrontPayment {
		payingFor = attempt.TrackingOrderID
	}
	if payingFor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout has no order awaiting payment")
	}

	if _, err := s.verifyPayment(ctx, orders.VerifyPaymentRequest{
		RazorpayOrderID:   payment.OrderID,
		RazorpayPaymentID: payment.PaymentID,
		OrderID:           *payingFor,
		RazorpaySignature: payment.Signature,
	}); err != nil {
		return nil, s.fail(ctx, attempt, FailureVerification, msgVerificationFailed, err)
	}
	if err := s.advance(ctx, attempt, EventPaymentConfirmed); err != nil {
		return nil, err
	}

	if attempt.State == StateUpfrontVerified {
		req := s.realOrderRequest(attempt, attempt.Breakdown.PayableAtDelivery)
		req.CODShippingUpfrontPaid = true
		req.UpfrontOrderID = attempt.TrackingOrderID
		resp, err := s.createOrder(ctx, req)
		if err != nil {
			return nil, s.fail(ctx, attempt, FailureReconciliation, msgReconciliation, err)
		}
		attempt.OrderID = &resp.OrderID
		if err := s.advance(ctx, attempt, EventOrderCreated); err != nil {
			return nil, err
		}
	}

	s.finish(ctx, attempt)
	return attempt, nil
}

// Dismiss records that the shopper closed the gateway dialog. The attempt
// returns to idle and the cart may be submitted again.
func (s *service) Dismiss(ctx context.Context, attemptID uuid.UUID) (*Attempt, error) {
	if attemptID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt id required")
	}
	release, err := s.acquireStepLock(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	defer release()

	attempt, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	ctx = s.withAttempt(ctx, attempt)
	if err := s.advance(ctx, attempt, EventDismissed); err != nil {
		return nil, err
	}
	s.releaseSubmitLock(ctx, attempt)
	return attempt, nil
}

func (s *service) Get(ctx context.Context, attemptID uuid.UUID) (*Attempt, error) {
	if attemptID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attempt id required")
	}
	return s.load(ctx, attemptID)
}

// advance applies event and persists the attempt.
func (s *service) advance(ctx context.Context, attempt *Attempt, event Event) error {
	from := attempt.State
	next, err := Transition(from, event)
	if err != nil {
		return err
	}
	attempt.State = next
	attempt.UpdatedAt = s.now()
	s.metrics.IncTransition(string(from), string(next))
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"from":  string(from),
			"to":    string(next),
			"event": string(event),
		}), "checkout transition")
	}
	if err := s.attempts.Save(ctx, attempt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save checkout attempt")
	}
	return nil
}

// fail moves the attempt to failed, frees the cart for a manual retry and
// returns the error surfaced to the shopper.
func (s *service) fail(ctx context.Context, attempt *Attempt, kind FailureKind, message string, cause error) error {
	attempt.Failure = &Failure{Kind: kind, Message: message}
	s.metrics.IncFailure(string(kind))
	if s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "failure_kind", string(kind)), "checkout failed", cause)
	}
	if err := s.advance(ctx, attempt, EventFailed); err != nil && s.logg != nil {
		s.logg.Error(ctx, "failed to record checkout failure", err)
	}
	s.releaseSubmitLock(ctx, attempt)

	var out *pkgerrors.Error
	switch kind {
	case FailureVerification:
		out = pkgerrors.Wrap(pkgerrors.CodePaymentVerification, cause, message)
	case FailureReconciliation:
		out = pkgerrors.Wrap(pkgerrors.CodeReconciliationRequired, cause, message)
	default:
		out = pkgerrors.Wrap(pkgerrors.CodeDependency, cause, message)
	}
	return out.WithDetails(map[string]any{"attempt_id": attempt.ID, "failure_kind": kind})
}

// finish clears the cart and frees the submission lock once an order is placed.
func (s *service) finish(ctx context.Context, attempt *Attempt) {
	if err := s.carts.Clear(ctx, attempt.CartID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "failed to clear cart after checkout", err)
	}
	s.releaseSubmitLock(ctx, attempt)
}

func (s *service) createOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.CreateOrderResponse, error) {
	start := time.Now()
	resp, err := s.orders.CreateOrder(ctx, req)
	s.metrics.ObserveCall("create_order", err, time.Since(start))
	return resp, err
}

func (s *service) verifyPayment(ctx context.Context, req orders.VerifyPaymentRequest) (*orders.VerifyPaymentResponse, error) {
	start := time.Now()
	resp, err := s.orders.VerifyPayment(ctx, req)
	s.metrics.ObserveCall("verify_payment", err, time.Since(start))
	if err == nil && (resp == nil || !resp.Success) {
		err = errors.New("verify-payment returned success=false")
	}
	return resp, err
}

func (s *service) load(ctx context.Context, attemptID uuid.UUID) (*Attempt, error) {
	attempt, err := s.attempts.Load(ctx, attemptID)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout attempt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load checkout attempt")
	}
	return attempt, nil
}

func (s *service) acquireStepLock(ctx context.Context, attemptID uuid.UUID) (func(), error) {
	key := s.locks.LockKey(stepLockScope, attemptID.String())
	token := uuid.NewString()
	acquired, err := s.locks.AcquireLock(ctx, key, token, s.opts.StepLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to acquire checkout lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout step already in progress")
	}
	return func() {
		if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "failed to release checkout step lock: "+err.Error())
		}
	}, nil
}

func (s *service) submitLockKey(cartID uuid.UUID) string {
	return s.locks.LockKey(submitLockScope, cartID.String())
}

func (s *service) releaseSubmitLock(ctx context.Context, attempt *Attempt) {
	err := s.locks.ReleaseLock(context.WithoutCancel(ctx), s.submitLockKey(attempt.CartID), attempt.ID.String())
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, "failed to release checkout submit lock: "+err.Error())
	}
}

func (s *service) withAttempt(ctx context.Context, attempt *Attempt) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithAttemptID(ctx, attempt.ID.String())
	return s.logg.WithCartID(ctx, attempt.CartID.String())
}

func orderItems(c *cart.Cart) []orders.CreateOrderItem {
	items := make([]orders.CreateOrderItem, len(c.Lines))
	for i, line := range c.Lines {
		items[i] = orders.CreateOrderItem{
			ID:       line.ProductID,
			Quantity: line.Quantity,
			Price:    line.UnitPrice,
		}
	}
	return items
}

// serverMessage returns the typed error's message when there is one.
func serverMessage(err error, fallback string) string {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() == "" || typed.Code() == pkgerrors.CodeInternal {
		return fallback
	}
	return typed.Message()
}
