package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	product "github.com/horologe/storefront-backend/internal/products"
	"github.com/horologe/storefront-backend/pkg/db/models"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/redis"
	"github.com/horologe/storefront-backend/pkg/types"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	default:
		return errors.New("unsupported value")
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryKV) CartKey(cartID string) string { return "hg:cart:" + cartID }

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s stubProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return nil, product.ErrNotFound
}

type cartFixture struct {
	svc     Service
	kv      *memoryKV
	watch   *models.Product
	bulk    *models.Product
	soldOut *models.Product
}

func newCartFixture(t *testing.T) cartFixture {
	t.Helper()
	watch := &models.Product{ID: uuid.New(), Name: "Submariner", Price: money.Paise(95000000), MOQ: 1, InStock: true,
		AdditionalCharges: types.AdditionalCharges{{Name: "Insurance", Amount: money.Paise(50000)}}}
	bulk := &models.Product{ID: uuid.New(), Name: "Strap", Price: money.Paise(150000), MOQ: 3, InStock: true}
	soldOut := &models.Product{ID: uuid.New(), Name: "Daytona", Price: money.Paise(100), MOQ: 1, InStock: false}

	kv := newMemoryKV()
	store, err := NewStore(kv, time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc, err := NewService(store, stubProducts{products: map[uuid.UUID]*models.Product{
		watch.ID: watch, bulk.ID: bulk, soldOut.ID: soldOut,
	}}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return cartFixture{svc: svc, kv: kv, watch: watch, bulk: bulk, soldOut: soldOut}
}

func TestAddItemStartsAtMOQAndSteps(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if f.kv.ttls[f.kv.CartKey(c.ID.String())] != time.Hour {
		t.Fatal("expected cart ttl to be applied")
	}

	c, err = f.svc.AddItem(ctx, c.ID, f.bulk.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := c.Lines[0].Quantity; got != 3 {
		t.Fatalf("expected quantity to start at moq 3, got %d", got)
	}

	c, err = f.svc.AddItem(ctx, c.ID, f.bulk.ID)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 6 {
		t.Fatalf("expected a single line at 6, got %+v", c.Lines)
	}

	c, err = f.svc.Increment(ctx, c.ID, f.bulk.ID)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if c.Lines[0].Quantity != 9 {
		t.Fatalf("expected increment by moq to 9, got %d", c.Lines[0].Quantity)
	}
}

func TestDecrementRejectedAtFloor(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)
	c, _ = f.svc.AddItem(ctx, c.ID, f.bulk.ID)
	c, _ = f.svc.Increment(ctx, c.ID, f.bulk.ID)

	c, err := f.svc.Decrement(ctx, c.ID, f.bulk.ID)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if c.Lines[0].Quantity != 3 {
		t.Fatalf("expected 3 after decrement, got %d", c.Lines[0].Quantity)
	}

	if _, err := f.svc.Decrement(ctx, c.ID, f.bulk.ID); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error at floor, got %v", err)
	}
	stored, err := f.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Lines[0].Quantity != 3 {
		t.Fatalf("rejected decrement must not change quantity, got %d", stored.Lines[0].Quantity)
	}
}

func TestRemoveAndTotals(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)
	c, _ = f.svc.AddItem(ctx, c.ID, f.watch.ID)
	c, _ = f.svc.AddItem(ctx, c.ID, f.bulk.ID)

	if got, want := c.Subtotal(), money.Paise(95000000+3*150000); got != want {
		t.Fatalf("expected subtotal %s, got %s", want, got)
	}

	c, err := f.svc.RemoveItem(ctx, c.ID, f.watch.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].ProductID != f.bulk.ID {
		t.Fatalf("unexpected lines after remove: %+v", c.Lines)
	}

	if _, err := f.svc.RemoveItem(ctx, c.ID, f.watch.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found removing twice, got %v", err)
	}
}

func TestAddItemRejectsUnavailableProducts(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)

	if _, err := f.svc.AddItem(ctx, c.ID, f.soldOut.ID); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of stock validation error, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, c.ID, uuid.New()); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestCouponReplaceAndClear(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)

	c, _ = f.svc.SetCoupon(ctx, c.ID, &AppliedCoupon{Code: "WELCOME", DiscountAmount: 10000})
	c, _ = f.svc.SetCoupon(ctx, c.ID, &AppliedCoupon{Code: "FREESHIP", FreeDelivery: true})
	if c.CouponCode() != "FREESHIP" || c.Discount() != 0 || !c.FreeDelivery() {
		t.Fatalf("expected coupon to be replaced, got %+v", c.Coupon)
	}

	c, _ = f.svc.SetCoupon(ctx, c.ID, nil)
	if c.Coupon != nil || c.Discount() != 0 {
		t.Fatalf("expected coupon cleared, got %+v", c.Coupon)
	}
}

func TestLineChangesDropAppliedCoupon(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)
	c, _ = f.svc.AddItem(ctx, c.ID, f.bulk.ID)
	c, _ = f.svc.Increment(ctx, c.ID, f.bulk.ID)
	c, _ = f.svc.Increment(ctx, c.ID, f.bulk.ID)

	changes := map[string]func() (*Cart, error){
		"decrement": func() (*Cart, error) { return f.svc.Decrement(ctx, c.ID, f.bulk.ID) },
		"increment": func() (*Cart, error) { return f.svc.Increment(ctx, c.ID, f.bulk.ID) },
		"add":       func() (*Cart, error) { return f.svc.AddItem(ctx, c.ID, f.watch.ID) },
		"remove":    func() (*Cart, error) { return f.svc.RemoveItem(ctx, c.ID, f.watch.ID) },
	}
	for _, name := range []string{"decrement", "increment", "add", "remove"} {
		discount := c.Subtotal() / 10
		if _, err := f.svc.SetCoupon(ctx, c.ID, &AppliedCoupon{Code: "TENOFF", DiscountAmount: discount}); err != nil {
			t.Fatalf("%s: set coupon: %v", name, err)
		}
		updated, err := changes[name]()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if updated.Coupon != nil || updated.Discount() != 0 {
			t.Fatalf("%s: expected coupon dropped, got %+v", name, updated.Coupon)
		}
		stored, err := f.svc.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("%s: get: %v", name, err)
		}
		if stored.Coupon != nil {
			t.Fatalf("%s: expected stored cart without coupon, got %+v", name, stored.Coupon)
		}
		c = stored
	}
}

func TestRejectedLineChangeKeepsCoupon(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)
	c, _ = f.svc.AddItem(ctx, c.ID, f.bulk.ID)
	c, _ = f.svc.SetCoupon(ctx, c.ID, &AppliedCoupon{Code: "TENOFF", DiscountAmount: 45000})

	if _, err := f.svc.Decrement(ctx, c.ID, f.bulk.ID); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error at floor, got %v", err)
	}
	stored, err := f.svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.CouponCode() != "TENOFF" || stored.Discount() != 45000 {
		t.Fatalf("expected coupon untouched, got %+v", stored.Coupon)
	}
}

func TestClearDeletesCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	c, _ := f.svc.Create(ctx)

	if err := f.svc.Clear(ctx, c.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.svc.Get(ctx, c.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected cleared cart to be gone, got %v", err)
	}
}

func TestStoreRoundTripKeepsMoney(t *testing.T) {
	kv := newMemoryKV()
	store, _ := NewStore(kv, time.Minute)
	ctx := context.Background()
	in := &Cart{ID: uuid.New(), Lines: []Line{{ProductID: uuid.New(), UnitPrice: money.Paise(104950), Quantity: 2, MOQ: 1}}}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := store.Load(ctx, in.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.Lines[0].UnitPrice != money.Paise(104950) {
		t.Fatalf("unit price drifted: %s", out.Lines[0].UnitPrice)
	}
	if _, err := store.Load(ctx, uuid.New()); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}
