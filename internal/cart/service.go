package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	product "github.com/horologe/storefront-backend/internal/products"
	"github.com/horologe/storefront-backend/pkg/db/models"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/logger"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service mutates carts. Quantities only move in MOQ steps.
type Service interface {
	Create(ctx context.Context) (*Cart, error)
	Get(ctx context.Context, cartID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error)
	Increment(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error)
	Decrement(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error)
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error)
	SetCoupon(ctx context.Context, cartID uuid.UUID, coupon *AppliedCoupon) (*Cart, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type service struct {
	store    Store
	products productLoader
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the cart service.
func NewService(store Store, products productLoader, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{
		store:    store,
		products: products,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context) (*Cart, error) {
	now := s.now()
	c := &Cart{ID: uuid.New(), Lines: []Line{}, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Save(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create cart")
	}
	return c, nil
}

func (s *service) Get(ctx context.Context, cartID uuid.UUID) (*Cart, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	c, err := s.store.Load(ctx, cartID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cart")
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return c, nil
}

// AddItem adds the product at its MOQ, or steps an existing line up by MOQ.
func (s *service) AddItem(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if idx := c.lineIndex(productID); idx >= 0 {
		c.Lines[idx].Quantity += c.Lines[idx].MOQ
		return s.saveLines(ctx, c)
	}

	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load product")
	}
	if !p.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is out of stock")
	}
	moq := p.EffectiveMOQ()
	c.Lines = append(c.Lines, Line{
		ProductID:         p.ID,
		Name:              p.Name,
		Brand:             p.Brand,
		ImageURL:          p.ImageURL,
		UnitPrice:         p.Price,
		Quantity:          moq,
		MOQ:               moq,
		AdditionalCharges: p.AdditionalCharges,
	})
	return s.saveLines(ctx, c)
}

func (s *service) Increment(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error) {
	c, idx, err := s.loadLine(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	c.Lines[idx].Quantity += c.Lines[idx].MOQ
	return s.saveLines(ctx, c)
}

// Decrement steps the line down by MOQ. A line at its MOQ floor is left as is
// and the call is rejected; removal is explicit.
func (s *service) Decrement(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error) {
	c, idx, err := s.loadLine(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	line := c.Lines[idx]
	if line.Quantity-line.MOQ < line.MOQ {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "minimum order quantity for %s is %d", line.Name, line.MOQ).
			WithDetails(map[string]any{"product_id": line.ProductID, "moq": line.MOQ})
	}
	c.Lines[idx].Quantity -= line.MOQ
	return s.saveLines(ctx, c)
}

func (s *service) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*Cart, error) {
	c, idx, err := s.loadLine(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return s.saveLines(ctx, c)
}

// SetCoupon replaces the applied coupon. Nil removes it.
func (s *service) SetCoupon(ctx context.Context, cartID uuid.UUID, coupon *AppliedCoupon) (*Cart, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	c.Coupon = coupon
	return s.save(ctx, c)
}

func (s *service) Clear(ctx context.Context, cartID uuid.UUID) error {
	if err := s.store.Delete(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to clear cart")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithCartID(ctx, cartID.String()), "cart cleared")
	}
	return nil
}

func (s *service) loadLine(ctx context.Context, cartID, productID uuid.UUID) (*Cart, int, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return nil, -1, err
	}
	idx := c.lineIndex(productID)
	if idx < 0 {
		return nil, -1, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	return c, idx, nil
}

// saveLines persists a line change. The applied coupon was priced against the
// old subtotal, so it is dropped and must be applied again.
func (s *service) saveLines(ctx context.Context, c *Cart) (*Cart, error) {
	if c.Coupon != nil {
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(s.logg.WithCartID(ctx, c.ID.String()), "coupon_code", c.Coupon.Code), "coupon dropped after cart change")
		}
		c.Coupon = nil
	}
	return s.save(ctx, c)
}

func (s *service) save(ctx context.Context, c *Cart) (*Cart, error) {
	c.UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save cart")
	}
	return c, nil
}
