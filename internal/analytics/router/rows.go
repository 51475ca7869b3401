package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/internal/analytics/types"
	analyticswriter "github.com/horologe/storefront-backend/internal/analytics/writer"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/horologe/storefront-backend/pkg/outbox/payloads"
)

func orderCreatedRow(env types.Envelope, e *payloads.OrderCreatedEvent) (types.OrderEventRow, error) {
	row, err := newRow(env, e.OrderID, env.OccurredAt, e)
	if err != nil {
		return row, err
	}
	row.OrderKind = text(e.Kind.String())
	row.PaymentMethod = text(e.PaymentMethod.String())
	row.Status = text(e.Status.String())
	row.TotalPaise = paise(e.TotalAmount)
	row.DiscountPaise = paise(e.DiscountAmount)
	items := int64(e.ItemCount)
	row.ItemCount = &items
	if e.CouponCode != nil {
		row.CouponCode = text(*e.CouponCode)
	}
	return row, nil
}

// Gateway verification covers online orders and the upfront leg of COD
// checkouts; both are money collected.
func paymentVerifiedRow(env types.Envelope, e *payloads.OrderPaymentVerifiedEvent) (types.OrderEventRow, error) {
	row, err := newRow(env, e.OrderID, e.VerifiedAt, e)
	if err != nil {
		return row, err
	}
	row.OrderKind = text(e.Kind.String())
	row.PaymentMethod = text(enums.PaymentMethodOnline.String())
	row.Status = text(enums.OrderStatusConfirmed.String())
	row.CollectedPaise = paise(e.Amount)
	return row, nil
}

func statusChangedRow(env types.Envelope, e *payloads.OrderStatusChangedEvent) (types.OrderEventRow, error) {
	row, err := newRow(env, e.OrderID, e.ChangedAt, e)
	if err != nil {
		return row, err
	}
	row.OrderKind = text(e.Kind.String())
	row.PaymentMethod = text(e.PaymentMethod.String())
	row.Status = text(e.To.String())
	row.PreviousStatus = text(e.From.String())
	row.TotalPaise = paise(e.TotalAmount)
	if cashCollected(e) {
		row.CollectedPaise = paise(e.TotalAmount)
	}
	return row, nil
}

// cashCollected is true when a merchandise COD order is delivered, which is
// when the courier takes the cash.
func cashCollected(e *payloads.OrderStatusChangedEvent) bool {
	return e.To == enums.OrderStatusDelivered &&
		e.PaymentMethod == enums.PaymentMethodCOD &&
		e.Kind != enums.OrderKindUpfrontCharges
}

func gatewayFailedRow(env types.Envelope, e *payloads.OrderGatewayFailedEvent) (types.OrderEventRow, error) {
	row, err := newRow(env, e.OrderID, e.FailedAt, e)
	if err != nil {
		return row, err
	}
	row.PaymentMethod = text(enums.PaymentMethodOnline.String())
	row.Status = text(enums.OrderStatusCancelled.String())
	row.PreviousStatus = text(enums.OrderStatusPending.String())
	row.TotalPaise = paise(e.Amount)
	return row, nil
}

func couponRedeemedRow(env types.Envelope, e *payloads.CouponRedeemedEvent) (types.OrderEventRow, error) {
	row, err := newRow(env, e.OrderID, env.OccurredAt, e)
	if err != nil {
		return row, err
	}
	row.CouponCode = text(e.Code)
	row.DiscountPaise = paise(e.DiscountAmount)
	return row, nil
}

func couponReleasedRow(env types.Envelope, e *payloads.CouponReleasedEvent) (types.OrderEventRow, error) {
	row, err := newRow(env, e.OrderID, e.ReleasedAt, e)
	if err != nil {
		return row, err
	}
	row.CouponCode = text(e.Code)
	row.DiscountPaise = paise(e.DiscountAmount)
	row.Status = text(enums.OrderStatusCancelled.String())
	return row, nil
}

// newRow fills the columns every event shares. A zero occurred falls back to
// the envelope timestamp.
func newRow(env types.Envelope, orderID uuid.UUID, occurred time.Time, payload any) (types.OrderEventRow, error) {
	if occurred.IsZero() {
		occurred = env.OccurredAt
	}
	raw, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.OrderEventRow{
		EventID:    env.EventID,
		EventType:  env.EventType.String(),
		OccurredAt: occurred.UTC(),
		OrderID:    orderID.String(),
		ActorKind:  text(env.ActorKind),
		Payload:    raw,
	}, nil
}

func text(value string) *string {
	if value = strings.TrimSpace(value); value == "" {
		return nil
	}
	return &value
}

func paise(value money.Paise) *int64 {
	v := value.Int64()
	return &v
}
