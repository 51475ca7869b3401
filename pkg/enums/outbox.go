package enums

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateCoupon OutboxAggregateType = "coupon"
)

var aggregateTypes = newSet("aggregate type", AggregateOrder, AggregateCoupon)

func (a OutboxAggregateType) String() string { return string(a) }
func (a OutboxAggregateType) IsValid() bool  { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType is the event_type column of outbox_events and the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderPaymentVerified OutboxEventType = "order_payment_verified"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventOrderGatewayFailed   OutboxEventType = "order_gateway_failed"
	EventCouponRedeemed       OutboxEventType = "coupon_redeemed"
	EventCouponReleased       OutboxEventType = "coupon_released"
)

var eventTypes = newSet("event type",
	EventOrderCreated,
	EventOrderPaymentVerified,
	EventOrderStatusChanged,
	EventOrderGatewayFailed,
	EventCouponRedeemed,
	EventCouponReleased,
)

func (e OutboxEventType) String() string { return string(e) }
func (e OutboxEventType) IsValid() bool  { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) { return eventTypes.parse(value) }
