package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. Amount columns are in paise.
type OrderEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	OrderID        string             `bigquery:"order_id"`
	OrderKind      *string            `bigquery:"order_kind"`
	PaymentMethod  *string            `bigquery:"payment_method"`
	Status         *string            `bigquery:"status"`
	PreviousStatus *string            `bigquery:"previous_status"`
	TotalPaise     *int64             `bigquery:"total_paise"`
	DiscountPaise  *int64             `bigquery:"discount_paise"`
	CollectedPaise *int64             `bigquery:"collected_paise"`
	CouponCode     *string            `bigquery:"coupon_code"`
	ItemCount      *int64             `bigquery:"item_count"`
	ActorKind      *string            `bigquery:"actor_kind"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
