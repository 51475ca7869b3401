package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/outbox"
	"github.com/horologe/storefront-backend/pkg/outbox/payloads"
)

// MaxEnvelopeVersion is the newest envelope layout this build can decode.
const MaxEnvelopeVersion = 1

// EventDescriptor says where an event type is published and what it carries.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(json.RawMessage) (any, error)
}

// ResolvedEvent is an outbox row whose envelope and payload decoded cleanly.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// Attributes are the Pub/Sub message attributes subscribers filter on.
func (e ResolvedEvent) Attributes(aggregateID uuid.UUID, source string) map[string]string {
	return map[string]string{
		"event_id":         e.Envelope.EventID,
		"event_type":       string(e.Descriptor.EventType),
		"aggregate_type":   string(e.Descriptor.AggregateType),
		"aggregate_id":     aggregateID.String(),
		"envelope_version": fmt.Sprint(e.Envelope.Version),
		"occurred_at":      e.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		"source":           source,
	}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish no matter how often it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// NewEventRegistry wires every order and coupon event to the orders topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	topic := cfg.OrdersTopic

	register[payloads.OrderCreatedEvent](reg, enums.EventOrderCreated, enums.AggregateOrder, topic)
	register[payloads.OrderPaymentVerifiedEvent](reg, enums.EventOrderPaymentVerified, enums.AggregateOrder, topic)
	register[payloads.OrderStatusChangedEvent](reg, enums.EventOrderStatusChanged, enums.AggregateOrder, topic)
	register[payloads.OrderGatewayFailedEvent](reg, enums.EventOrderGatewayFailed, enums.AggregateOrder, topic)
	register[payloads.CouponRedeemedEvent](reg, enums.EventCouponRedeemed, enums.AggregateCoupon, topic)
	register[payloads.CouponReleasedEvent](reg, enums.EventCouponReleased, enums.AggregateCoupon, topic)

	return reg, nil
}

func register[T any](reg *EventRegistry, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	reg.entries[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Topics lists the distinct topics events are routed to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, desc := range r.entries {
		if _, ok := seen[desc.Topic]; ok {
			continue
		}
		seen[desc.Topic] = struct{}{}
		topics = append(topics, desc.Topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve validates the row and decodes its typed payload. Every failure is
// a NonRetryableError since the row itself is malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, nonRetryable("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryable("%w", err)
	}
	if envelope.Version < 1 || envelope.Version > MaxEnvelopeVersion {
		return nil, nonRetryable("unsupported envelope version %d", envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return nil, nonRetryable("invalid envelope event id %q", envelope.EventID)
	}
	if !envelope.HasData() {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
