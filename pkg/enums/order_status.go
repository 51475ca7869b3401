package enums

import "slices"

// OrderStatus tracks a storefront order from placement to delivery.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = newSet("order status",
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
)

// Each status may only advance one step or be cancelled. Delivered and
// cancelled have no exits.
var nextStatuses = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

func (o OrderStatus) String() string { return string(o) }
func (o OrderStatus) IsValid() bool  { return orderStatuses.has(o) }

// IsTerminal reports whether no further transition is allowed.
func (o OrderStatus) IsTerminal() bool { return o.IsValid() && len(nextStatuses[o]) == 0 }

func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(nextStatuses[o], next)
}

func ParseOrderStatus(value string) (OrderStatus, error) { return orderStatuses.parse(value) }
