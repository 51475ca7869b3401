package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/internal/analytics/types"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/outbox"
)

// consumerName scopes the processed-event markers of this worker.
const consumerName = "order-analytics"

// Handler turns a decoded envelope into analytics rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type Params struct {
	Subscription *gcppubsub.Subscriber
	Handler      Handler
	Guard        idempotencyChecker
	Logger       *logger.Logger
	Metrics      *metrics.AnalyticsMetrics
}

// Service consumes order events from Pub/Sub and feeds the analytics sink.
// Every event id is recorded at most once.
type Service struct {
	subscription receiver
	handler      Handler
	guard        idempotencyChecker
	logg         *logger.Logger
	metrics      *metrics.AnalyticsMetrics
}

func NewService(p Params) (*Service, error) {
	if p.Subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	return newService(p.Subscription, p)
}

func newService(subscription receiver, p Params) (*Service, error) {
	switch {
	case p.Handler == nil:
		return nil, errors.New("analytics handler is required")
	case p.Guard == nil:
		return nil, errors.New("idempotency guard is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      p.Handler,
		guard:        p.Guard,
		logg:         p.Logger,
		metrics:      p.Metrics,
	}, nil
}

// outcome is how a message was settled. Only outcomeRetry nacks.
type outcome string

const (
	outcomeRecorded  outcome = "recorded"
	outcomeDuplicate outcome = "duplicate"
	outcomeIgnored   outcome = "ignored"
	outcomeMalformed outcome = "malformed"
	outcomeRetry     outcome = "retry"
)

// Run consumes messages until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		eventType, result := s.process(msgCtx, msg)
		s.metrics.Observe(eventType, string(result))
		if result == outcomeRetry {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) (string, outcome) {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)
	eventType := attribute(msg, "event_type")

	envelope, err := buildEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "dropping malformed order event")
		return eventType, outcomeMalformed
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping order event with invalid id")
		return eventType, outcomeMalformed
	}

	seen, err := s.guard.CheckAndMarkProcessed(ctx, consumerName, eventID)
	switch {
	case err != nil:
		s.logg.Error(ctx, "idempotency check failed", err)
		return eventType, outcomeRetry
	case seen:
		s.logg.Info(ctx, "order event already recorded")
		return eventType, outcomeDuplicate
	}

	err = s.handler.Handle(ctx, *envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "order event recorded")
		return eventType, outcomeRecorded
	case errors.Is(err, types.ErrUnsupportedEvent):
		s.logg.Info(ctx, "order event not tracked by analytics")
		return eventType, outcomeIgnored
	}
	s.logg.Error(ctx, "analytics handler failed", err)
	// release the marker so the redelivery is not mistaken for a duplicate
	if delErr := s.guard.Delete(ctx, consumerName, eventID); delErr != nil {
		s.logg.Error(ctx, "failed to clear idempotency marker", delErr)
	}
	return eventType, outcomeRetry
}

// buildEnvelope prefers the stored payload envelope and falls back to the
// message attributes set by the outbox publisher.
func buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}

	eventType, err := enums.ParseOutboxEventType(attribute(msg, "event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attribute(msg, "aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attribute(msg, "aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attribute(msg, "event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if raw := attribute(msg, "occurred_at"); raw != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				occurredAt = parsed
			}
		}
	}
	if occurredAt.IsZero() {
		occurredAt = msg.PublishTime
	}

	env := &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}
	if stored.Actor != nil {
		env.ActorKind = stored.Actor.Kind
	}
	return env, nil
}

func attribute(msg *gcppubsub.Message, key string) string {
	return strings.TrimSpace(msg.Attributes[key])
}
