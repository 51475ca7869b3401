package enums

// CouponType selects how a coupon's value becomes a discount.
type CouponType string

const (
	CouponTypeFlatAmount   CouponType = "flat_amount"
	CouponTypePercentage   CouponType = "percentage"
	CouponTypeFreeDelivery CouponType = "free_delivery"
)

var couponTypes = newSet("coupon type", CouponTypeFlatAmount, CouponTypePercentage, CouponTypeFreeDelivery)

func (c CouponType) String() string { return string(c) }
func (c CouponType) IsValid() bool  { return couponTypes.has(c) }

func ParseCouponType(value string) (CouponType, error) { return couponTypes.parse(value) }
