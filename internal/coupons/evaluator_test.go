package coupons

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
)

func paisePtr(p money.Paise) *money.Paise { return &p }
func intPtr(v int) *int                   { return &v }
func timePtr(t time.Time) *time.Time      { return &t }

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	base := func() *models.Coupon {
		return &models.Coupon{
			ID:       uuid.New(),
			Code:     "WATCH10",
			Name:     "Ten off",
			Type:     enums.CouponTypePercentage,
			Value:    decimal.NewFromInt(10),
			IsActive: true,
		}
	}

	cases := []struct {
		name         string
		coupon       func() *models.Coupon
		total        money.Paise
		wantValid    bool
		wantDiscount money.Paise
		wantMessage  string
		wantFree     bool
	}{
		{
			name:        "missing coupon",
			coupon:      func() *models.Coupon { return nil },
			total:       100000,
			wantMessage: MsgInvalidCode,
		},
		{
			name: "inactive",
			coupon: func() *models.Coupon {
				c := base()
				c.IsActive = false
				return c
			},
			total:       100000,
			wantMessage: MsgInactive,
		},
		{
			name: "not yet valid",
			coupon: func() *models.Coupon {
				c := base()
				c.ValidFrom = timePtr(now.Add(time.Hour))
				return c
			},
			total:       100000,
			wantMessage: MsgNotYetValid,
		},
		{
			name: "expired",
			coupon: func() *models.Coupon {
				c := base()
				c.ValidUntil = timePtr(now.Add(-time.Minute))
				return c
			},
			total:       100000,
			wantMessage: MsgExpired,
		},
		{
			name: "usage cap reached",
			coupon: func() *models.Coupon {
				c := base()
				c.MaxUses = intPtr(5)
				c.CurrentUses = 5
				return c
			},
			total:       100000,
			wantMessage: MsgUsageExceeded,
		},
		{
			name: "below minimum order",
			coupon: func() *models.Coupon {
				c := base()
				c.MinimumOrderAmount = paisePtr(500000)
				return c
			},
			total:       499999,
			wantMessage: "Minimum order amount of ₹5000 required",
		},
		{
			name: "minimum order met exactly",
			coupon: func() *models.Coupon {
				c := base()
				c.MinimumOrderAmount = paisePtr(500000)
				return c
			},
			total:        500000,
			wantValid:    true,
			wantDiscount: 50000,
			wantMessage:  MsgApplied,
		},
		{
			name: "percentage capped",
			coupon: func() *models.Coupon {
				c := base()
				c.CapAmount = paisePtr(20000)
				return c
			},
			total:        1000000,
			wantValid:    true,
			wantDiscount: 20000,
			wantMessage:  MsgApplied,
		},
		{
			name: "percentage rounds to paisa",
			coupon: func() *models.Coupon {
				c := base()
				c.Value = decimal.RequireFromString("12.5")
				return c
			},
			total:        99999,
			wantValid:    true,
			wantDiscount: 12500,
			wantMessage:  MsgApplied,
		},
		{
			name: "flat amount",
			coupon: func() *models.Coupon {
				c := base()
				c.Type = enums.CouponTypeFlatAmount
				c.Value = decimal.NewFromInt(500)
				return c
			},
			total:        100000,
			wantValid:    true,
			wantDiscount: 50000,
			wantMessage:  MsgApplied,
		},
		{
			name: "flat amount limited to order total",
			coupon: func() *models.Coupon {
				c := base()
				c.Type = enums.CouponTypeFlatAmount
				c.Value = decimal.NewFromInt(2000)
				return c
			},
			total:        150000,
			wantValid:    true,
			wantDiscount: 150000,
			wantMessage:  MsgApplied,
		},
		{
			name: "free delivery",
			coupon: func() *models.Coupon {
				c := base()
				c.Type = enums.CouponTypeFreeDelivery
				c.Value = decimal.Zero
				return c
			},
			total:       100000,
			wantValid:   true,
			wantMessage: MsgFreeDelivery,
			wantFree:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.coupon(), tc.total, now)
			if got.IsValid != tc.wantValid {
				t.Fatalf("expected valid=%v got %v (%s)", tc.wantValid, got.IsValid, got.Message)
			}
			if got.DiscountAmount != tc.wantDiscount {
				t.Fatalf("expected discount %d got %d", tc.wantDiscount, got.DiscountAmount)
			}
			if got.Message != tc.wantMessage {
				t.Fatalf("expected message %q got %q", tc.wantMessage, got.Message)
			}
			if tc.wantValid {
				if got.CouponData == nil {
					t.Fatal("expected coupon data on a valid result")
				}
				if got.CouponData.FreeDelivery != tc.wantFree {
					t.Fatalf("expected free delivery %v", tc.wantFree)
				}
			} else if got.CouponData != nil {
				t.Fatal("expected no coupon data on an invalid result")
			}
		})
	}
}

func TestEvaluateValidityWindowBoundsAreInclusive(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := &models.Coupon{
		Code:       "EDGE",
		Type:       enums.CouponTypeFlatAmount,
		Value:      decimal.NewFromInt(100),
		IsActive:   true,
		ValidFrom:  timePtr(now),
		ValidUntil: timePtr(now),
	}
	if got := Evaluate(c, 100000, now); !got.IsValid {
		t.Fatalf("expected coupon valid at both bounds, got %q", got.Message)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  watch10 "); got != "WATCH10" {
		t.Fatalf("expected WATCH10 got %q", got)
	}
}
