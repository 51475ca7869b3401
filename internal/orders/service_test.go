package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	product "github.com/horologe/storefront-backend/internal/products"
	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/pagination"
	"github.com/horologe/storefront-backend/pkg/razorpay"
	"github.com/horologe/storefront-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  brand TEXT NOT NULL,
  description TEXT,
  image_url TEXT,
  price_paise INTEGER NOT NULL,
  moq INTEGER NOT NULL DEFAULT 1,
  additional_charges TEXT NOT NULL DEFAULT '[]',
  in_stock INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL DEFAULT 'standard',
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount_paise INTEGER NOT NULL,
  discount_amount_paise INTEGER NOT NULL DEFAULT 0,
  coupon_code TEXT,
  shipping_address TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  upfront_paid INTEGER NOT NULL DEFAULT 0,
  upfront_order_id TEXT,
  razorpay_order_id TEXT,
  razorpay_payment_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE UNIQUE INDEX ux_orders_upfront_order_id
  ON orders (upfront_order_id) WHERE upfront_order_id IS NOT NULL;`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_paise INTEGER NOT NULL,
  created_at DATETIME
);`).Error)
	return db
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	for _, seen := range r.events {
		if seen.EventType == event.EventType && seen.AggregateID == event.AggregateID {
			return nil
		}
	}
	return r.Emit(ctx, tx, event)
}

func (r *recordingOutbox) types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type stubRedeemer struct {
	redeemed    []string
	released    []string
	invalidated []string
	held        map[uuid.UUID]string
	exhausted   map[string]bool
}

func (s *stubRedeemer) Redeem(_ context.Context, _ *gorm.DB, code string, orderID uuid.UUID, _ money.Paise) error {
	if s.exhausted[code] {
		return pkgerrors.New(pkgerrors.CodeValidation, "Coupon usage limit reached")
	}
	s.redeemed = append(s.redeemed, code)
	if s.held == nil {
		s.held = map[uuid.UUID]string{}
	}
	s.held[orderID] = code
	return nil
}

func (s *stubRedeemer) Release(_ context.Context, _ *gorm.DB, orderID uuid.UUID) (string, error) {
	code, ok := s.held[orderID]
	if !ok {
		return "", nil
	}
	delete(s.held, orderID)
	s.released = append(s.released, code)
	return code, nil
}

func (s *stubRedeemer) Invalidate(_ context.Context, code string) {
	s.invalidated = append(s.invalidated, code)
}

type stubGateway struct {
	inputs   []razorpay.CreateOrderInput
	err      error
	validSig string
	seq      int
}

func (g *stubGateway) CreateOrder(_ context.Context, input razorpay.CreateOrderInput) (*razorpay.Order, error) {
	g.inputs = append(g.inputs, input)
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	return &razorpay.Order{
		ID:       fmt.Sprintf("order_rzp_%d", g.seq),
		Amount:   input.Amount,
		Currency: "INR",
		Receipt:  input.Receipt,
	}, nil
}

func (g *stubGateway) VerifyPaymentSignature(_, _, signature string) bool {
	return signature == g.validSig
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

type orderFixture struct {
	db      *gorm.DB
	svc     Service
	outbox  *recordingOutbox
	coupons *stubRedeemer
	gateway *stubGateway
	watch   models.Product
}

func newOrderFixture(t *testing.T, opts Options) orderFixture {
	t.Helper()
	db := setupOrdersTestDB(t)
	watch := models.Product{Name: "Seamaster", Brand: "Omega", Price: 250000, MOQ: 1, InStock: true, IsActive: true}
	require.NoError(t, db.Create(&watch).Error)

	rec := &recordingOutbox{}
	redeemer := &stubRedeemer{}
	gw := &stubGateway{validSig: "good-signature"}
	svc, err := NewService(NewRepository(db), gormTx{db: db}, rec, product.NewRepository(db), redeemer, gw, nil, opts)
	require.NoError(t, err)
	return orderFixture{db: db, svc: svc, outbox: rec, coupons: redeemer, gateway: gw, watch: watch}
}

func testAddress() types.ShippingAddress {
	return types.ShippingAddress{
		Name:    "Asha Rao",
		Email:   "asha@example.com",
		Phone:   "+91 98765 43210",
		Address: "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	}
}

func loadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, db.Preload("Items").Where("id = ?", id).First(&order).Error)
	return order
}

func TestCreateOnlineOrderOpensGatewayOrder(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()
	code := "watch10"

	resp, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 2, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     455000,
		PaymentMethod:   enums.PaymentMethodOnline,
		CouponCode:      &code,
		DiscountAmount:  50000,
	})
	require.NoError(t, err)
	assert.True(t, resp.RequiresPayment())
	assert.Equal(t, int64(455000), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_key", resp.Key)

	require.Len(t, f.gateway.inputs, 1)
	assert.Equal(t, resp.OrderID.String(), f.gateway.inputs[0].Receipt)

	order := loadOrder(t, f.db, resp.OrderID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.OrderKindStandard, order.Kind)
	assert.Equal(t, "919876543210", order.CustomerPhone)
	require.NotNil(t, order.RazorpayOrderID)
	assert.Equal(t, resp.RazorpayOrderID, *order.RazorpayOrderID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	assert.Equal(t, []string{"WATCH10"}, f.coupons.redeemed)
	assert.Equal(t, []string{"WATCH10"}, f.coupons.invalidated)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, f.outbox.types())
}

func TestCreateCODOrderWithoutUpfrontSkipsGateway(t *testing.T) {
	f := newOrderFixture(t, Options{})

	resp, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     255000,
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	require.NoError(t, err)
	assert.False(t, resp.RequiresPayment())
	assert.Empty(t, f.gateway.inputs)

	order := loadOrder(t, f.db, resp.OrderID)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
}

func TestCreateUpfrontChargeOrderHasNoItems(t *testing.T) {
	f := newOrderFixture(t, Options{})
	code := "WATCH10"

	resp, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     5000,
		PaymentMethod:   enums.PaymentMethodCOD,
		CouponCode:      &code,
		CODShippingOnly: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.RequiresPayment())
	assert.Equal(t, int64(5000), resp.Amount)

	order := loadOrder(t, f.db, resp.OrderID)
	assert.Equal(t, enums.OrderKindUpfrontCharges, order.Kind)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Empty(t, order.Items)
	assert.Nil(t, order.CouponCode)
	assert.Empty(t, f.coupons.redeemed)

	dto, err := f.svc.Get(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.NotNil(t, dto.CouponCode)
	assert.Equal(t, enums.UpfrontChargesCouponMarker, *dto.CouponCode)
}

func TestTwoPhaseCODLinksUpfrontOrder(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	upfront, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		ShippingAddress: testAddress(),
		TotalAmount:     5000,
		PaymentMethod:   enums.PaymentMethodCOD,
		CODShippingOnly: true,
	})
	require.NoError(t, err)

	realOrder := CreateOrderRequest{
		Items:                  []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress:        testAddress(),
		TotalAmount:            250000,
		PaymentMethod:          enums.PaymentMethodCOD,
		CODShippingUpfrontPaid: true,
		UpfrontOrderID:         &upfront.OrderID,
	}
	_, err = f.svc.CreateOrder(ctx, realOrder)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.VerifyPayment(ctx, VerifyPaymentRequest{
		OrderID:           upfront.OrderID,
		RazorpayOrderID:   upfront.RazorpayOrderID,
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "good-signature",
	})
	require.NoError(t, err)

	resp, err := f.svc.CreateOrder(ctx, realOrder)
	require.NoError(t, err)
	assert.False(t, resp.RequiresPayment())

	order := loadOrder(t, f.db, resp.OrderID)
	assert.True(t, order.UpfrontPaid)
	require.NotNil(t, order.UpfrontOrderID)
	assert.Equal(t, upfront.OrderID, *order.UpfrontOrderID)
	assert.Len(t, f.gateway.inputs, 1)
}

func TestUpfrontChargeBacksSingleOrder(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	upfront, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		ShippingAddress: testAddress(),
		TotalAmount:     5000,
		PaymentMethod:   enums.PaymentMethodCOD,
		CODShippingOnly: true,
	})
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(ctx, VerifyPaymentRequest{
		OrderID:           upfront.OrderID,
		RazorpayOrderID:   upfront.RazorpayOrderID,
		RazorpayPaymentID: "pay_upfront",
		RazorpaySignature: "good-signature",
	})
	require.NoError(t, err)

	realOrder := CreateOrderRequest{
		Items:                  []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress:        testAddress(),
		TotalAmount:            250000,
		PaymentMethod:          enums.PaymentMethodCOD,
		CODShippingUpfrontPaid: true,
		UpfrontOrderID:         &upfront.OrderID,
	}
	_, err = f.svc.CreateOrder(ctx, realOrder)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, realOrder)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var linked int64
	require.NoError(t, f.db.Model(&models.Order{}).Where("upfront_order_id = ?", upfront.OrderID).Count(&linked).Error)
	assert.Equal(t, int64(1), linked)
}

func TestCreateOrderGatewayFailureCancelsOrder(t *testing.T) {
	f := newOrderFixture(t, Options{})
	f.gateway.err = errors.New("gateway down")

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     250000,
		PaymentMethod:   enums.PaymentMethodOnline,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var order models.Order
	require.NoError(t, f.db.First(&order).Error)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderGatewayFailed}, f.outbox.types())
}

func TestCreateOrderRejectsExhaustedCoupon(t *testing.T) {
	f := newOrderFixture(t, Options{})
	f.coupons.exhausted = map[string]bool{"WATCH10": true}
	code := "watch10"

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     225000,
		PaymentMethod:   enums.PaymentMethodOnline,
		CouponCode:      &code,
		DiscountAmount:  25000,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.gateway.inputs)
	assert.Empty(t, f.outbox.events)
}

func TestCancelledOrdersReleaseCoupon(t *testing.T) {
	code := "watch10"
	couponOrder := func(productID uuid.UUID, method enums.PaymentMethod) CreateOrderRequest {
		return CreateOrderRequest{
			Items:           []CreateOrderItem{{ID: productID, Quantity: 1, Price: 250000}},
			ShippingAddress: testAddress(),
			TotalAmount:     225000,
			PaymentMethod:   method,
			CouponCode:      &code,
			DiscountAmount:  25000,
		}
	}

	t.Run("gateway failure", func(t *testing.T) {
		f := newOrderFixture(t, Options{})
		f.gateway.err = errors.New("gateway down")
		req := couponOrder(f.watch.ID, enums.PaymentMethodOnline)

		_, err := f.svc.CreateOrder(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, []string{"WATCH10"}, f.coupons.released)
		assert.Empty(t, f.coupons.held)
		assert.Equal(t, []string{"WATCH10", "WATCH10"}, f.coupons.invalidated)
	})

	t.Run("unpaid expiry", func(t *testing.T) {
		f := newOrderFixture(t, Options{})
		ctx := context.Background()
		req := couponOrder(f.watch.ID, enums.PaymentMethodOnline)
		resp, err := f.svc.CreateOrder(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, f.coupons.released)

		now := time.Now().UTC()
		require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", resp.OrderID).
			Update("created_at", now.Add(-72*time.Hour)).Error)

		expired, err := f.svc.ExpireUnpaid(ctx, now.Add(-48*time.Hour), 10)
		require.NoError(t, err)
		assert.Equal(t, 1, expired)
		assert.Equal(t, []string{"WATCH10"}, f.coupons.released)
		assert.Empty(t, f.coupons.held)
	})

	t.Run("admin cancel", func(t *testing.T) {
		f := newOrderFixture(t, Options{})
		ctx := context.Background()
		req := couponOrder(f.watch.ID, enums.PaymentMethodCOD)
		resp, err := f.svc.CreateOrder(ctx, req)
		require.NoError(t, err)

		_, err = f.svc.UpdateStatus(ctx, resp.OrderID, enums.OrderStatusProcessing)
		require.NoError(t, err)
		assert.Empty(t, f.coupons.released)

		_, err = f.svc.UpdateStatus(ctx, resp.OrderID, enums.OrderStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, []string{"WATCH10"}, f.coupons.released)
		assert.Empty(t, f.coupons.held)
	})
}

func TestCreateOrderValidation(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()
	upfrontID := uuid.New()

	cases := map[string]CreateOrderRequest{
		"no items": {
			ShippingAddress: testAddress(), TotalAmount: 100, PaymentMethod: enums.PaymentMethodOnline,
		},
		"bad method": {
			Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 1}},
			ShippingAddress: testAddress(), TotalAmount: 100, PaymentMethod: "upi",
		},
		"unknown product": {
			Items:           []CreateOrderItem{{ID: uuid.New(), Quantity: 1, Price: 1}},
			ShippingAddress: testAddress(), TotalAmount: 100, PaymentMethod: enums.PaymentMethodCOD,
		},
		"online zero total": {
			Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 0}},
			ShippingAddress: testAddress(), TotalAmount: 0, PaymentMethod: enums.PaymentMethodOnline,
		},
		"shipping only online": {
			ShippingAddress: testAddress(), TotalAmount: 5000, PaymentMethod: enums.PaymentMethodOnline, CODShippingOnly: true,
		},
		"upfront id without flag": {
			Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 1}},
			ShippingAddress: testAddress(), TotalAmount: 100, PaymentMethod: enums.PaymentMethodCOD, UpfrontOrderID: &upfrontID,
		},
		"short phone": {
			Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 1}},
			ShippingAddress: types.ShippingAddress{Phone: "12345"}, TotalAmount: 100, PaymentMethod: enums.PaymentMethodCOD,
		},
	}
	for name, req := range cases {
		_, err := f.svc.CreateOrder(ctx, req)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: %v", name, err)
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerifyPayment(t *testing.T) {
	f := newOrderFixture(t, Options{RequireSignature: true})
	ctx := context.Background()

	resp, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     250000,
		PaymentMethod:   enums.PaymentMethodOnline,
	})
	require.NoError(t, err)

	base := VerifyPaymentRequest{OrderID: resp.OrderID, RazorpayOrderID: resp.RazorpayOrderID, RazorpayPaymentID: "pay_42"}

	_, err = f.svc.VerifyPayment(ctx, base)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification), "missing signature: %v", err)

	bad := base
	bad.RazorpaySignature = "forged"
	_, err = f.svc.VerifyPayment(ctx, bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification), "bad signature: %v", err)

	mismatch := base
	mismatch.RazorpayOrderID = "order_other"
	mismatch.RazorpaySignature = "good-signature"
	_, err = f.svc.VerifyPayment(ctx, mismatch)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification), "mismatch: %v", err)

	good := base
	good.RazorpaySignature = "good-signature"
	out, err := f.svc.VerifyPayment(ctx, good)
	require.NoError(t, err)
	assert.True(t, out.Success)

	order := loadOrder(t, f.db, resp.OrderID)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	require.NotNil(t, order.RazorpayPaymentID)
	assert.Equal(t, "pay_42", *order.RazorpayPaymentID)

	out, err = f.svc.VerifyPayment(ctx, good)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderPaymentVerified}, f.outbox.types())

	other := good
	other.RazorpayPaymentID = "pay_43"
	_, err = f.svc.VerifyPayment(ctx, other)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestVerifyPaymentWithoutSignatureWhenOptional(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	resp, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     250000,
		PaymentMethod:   enums.PaymentMethodOnline,
	})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, VerifyPaymentRequest{
		OrderID:           resp.OrderID,
		RazorpayOrderID:   resp.RazorpayOrderID,
		RazorpayPaymentID: "pay_1",
	})
	require.NoError(t, err)
}

func TestTrackByPhone(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     250000,
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	require.NoError(t, err)

	short, err := f.svc.Track(ctx, "98765")
	require.NoError(t, err)
	assert.Empty(t, short)

	found, err := f.svc.Track(ctx, "9876543210")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Len(t, found[0].Items, 1)
	require.NotNil(t, found[0].Items[0].Product)
	assert.Equal(t, "Seamaster", found[0].Items[0].Product.Name)

	none, err := f.svc.Track(ctx, "9000000000")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	resp, err := f.svc.CreateOrder(ctx, CreateOrderRequest{
		Items:           []CreateOrderItem{{ID: f.watch.ID, Quantity: 1, Price: 250000}},
		ShippingAddress: testAddress(),
		TotalAmount:     250000,
		PaymentMethod:   enums.PaymentMethodCOD,
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, resp.OrderID, enums.OrderStatusDelivered)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	dto, err := f.svc.UpdateStatus(ctx, resp.OrderID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, dto.Status)

	_, err = f.svc.UpdateStatus(ctx, resp.OrderID, enums.OrderStatusCancelled)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, resp.OrderID, enums.OrderStatusConfirmed)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	last := f.outbox.events[len(f.outbox.events)-1]
	assert.Equal(t, enums.EventOrderStatusChanged, last.EventType)
}

func TestListPaginates(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := models.Order{
			Kind:            enums.OrderKindStandard,
			PaymentMethod:   enums.PaymentMethodCOD,
			Status:          enums.OrderStatusConfirmed,
			TotalAmount:     money.Paise(100000 * (i + 1)),
			ShippingAddress: testAddress(),
			CustomerPhone:   "919876543210",
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, f.db.Create(&order).Error)
	}

	first, err := f.svc.List(ctx, ListFilters{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, money.Paise(300000), first.Items[0].TotalAmount)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.List(ctx, ListFilters{}, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, money.Paise(100000), second.Items[0].TotalAmount)
	assert.Empty(t, second.NextCursor)

	_, err = f.svc.List(ctx, ListFilters{}, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExpireUnpaidCancelsStalePendingOrders(t *testing.T) {
	f := newOrderFixture(t, Options{})
	ctx := context.Background()

	now := time.Now().UTC()
	stale := models.Order{
		Kind:            enums.OrderKindStandard,
		PaymentMethod:   enums.PaymentMethodOnline,
		Status:          enums.OrderStatusPending,
		TotalAmount:     250000,
		ShippingAddress: testAddress(),
		CustomerPhone:   "919876543210",
		CreatedAt:       now.Add(-72 * time.Hour),
	}
	fresh := stale
	fresh.ID = uuid.Nil
	fresh.CreatedAt = now.Add(-time.Hour)
	paid := stale
	paid.ID = uuid.Nil
	paid.Status = enums.OrderStatusConfirmed
	require.NoError(t, f.db.Create(&stale).Error)
	require.NoError(t, f.db.Create(&fresh).Error)
	require.NoError(t, f.db.Create(&paid).Error)

	expired, err := f.svc.ExpireUnpaid(ctx, now.Add(-48*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, enums.OrderStatusCancelled, loadOrder(t, f.db, stale.ID).Status)
	assert.Equal(t, enums.OrderStatusPending, loadOrder(t, f.db, fresh.ID).Status)
	assert.Equal(t, enums.OrderStatusConfirmed, loadOrder(t, f.db, paid.ID).Status)

	require.Len(t, f.outbox.events, 1)
	event := f.outbox.events[0]
	assert.Equal(t, enums.EventOrderStatusChanged, event.EventType)
	assert.Equal(t, outbox.ActorSystem, event.Actor.Kind)

	again, err := f.svc.ExpireUnpaid(ctx, now.Add(-48*time.Hour), 10)
	require.NoError(t, err)
	assert.Zero(t, again)
}
