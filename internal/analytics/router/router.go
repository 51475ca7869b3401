package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/horologe/storefront-backend/internal/analytics/types"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/logger"
)

// Writer delivers the rows built by the router.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

// rowBuilder decodes an envelope payload into an order_events row.
type rowBuilder func(types.Envelope) (types.OrderEventRow, error)

// Router turns every supported outbox event into exactly one order_events
// row.
type Router struct {
	writer   Writer
	builders map[enums.OutboxEventType]rowBuilder
	logg     *logger.Logger
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{
		writer: writer,
		logg:   logg,
		builders: map[enums.OutboxEventType]rowBuilder{
			enums.EventOrderCreated:         build(orderCreatedRow),
			enums.EventOrderPaymentVerified: build(paymentVerifiedRow),
			enums.EventOrderStatusChanged:   build(statusChangedRow),
			enums.EventOrderGatewayFailed:   build(gatewayFailedRow),
			enums.EventCouponRedeemed:       build(couponRedeemedRow),
			enums.EventCouponReleased:       build(couponReleasedRow),
		},
	}, nil
}

// build adapts a typed mapping into a rowBuilder that decodes the payload
// first.
func build[T any](mapping func(types.Envelope, *T) (types.OrderEventRow, error)) rowBuilder {
	return func(env types.Envelope) (types.OrderEventRow, error) {
		event := new(T)
		if err := json.Unmarshal(env.Payload, event); err != nil {
			return types.OrderEventRow{}, fmt.Errorf("decode %s payload: %w", env.EventType, err)
		}
		return mapping(env, event)
	}
}

// Handle builds the row for envelope and writes it. Unknown event types
// return ErrUnsupportedEvent.
func (r *Router) Handle(ctx context.Context, env types.Envelope) error {
	builder, ok := r.builders[env.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedEvent, env.EventType)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", env.EventType)
	}
	row, err := builder(env)
	if err != nil {
		return err
	}

	ctx = r.logg.WithFields(ctx, map[string]any{"order_id": row.OrderID, "event_type": row.EventType})
	if err := r.writer.InsertOrderEvent(ctx, row); err != nil {
		r.logg.Error(ctx, "failed to insert order event row", err)
		return err
	}
	r.logg.Debug(ctx, "order event row inserted")
	return nil
}
