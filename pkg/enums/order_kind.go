package enums

// OrderKind separates merchandise orders from the tracking order that records
// the upfront charge paid before a cash-on-delivery order is placed.
type OrderKind string

const (
	OrderKindStandard       OrderKind = "standard"
	OrderKindUpfrontCharges OrderKind = "upfront_charges"
)

// UpfrontChargesCouponMarker is reported as coupon_code on upfront tracking
// orders.
const UpfrontChargesCouponMarker = "SHIPPING_ONLY"

var orderKinds = newSet("order kind", OrderKindStandard, OrderKindUpfrontCharges)

func (k OrderKind) String() string { return string(k) }
func (k OrderKind) IsValid() bool  { return orderKinds.has(k) }

func ParseOrderKind(value string) (OrderKind, error) { return orderKinds.parse(value) }
