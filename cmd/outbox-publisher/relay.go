package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
	"github.com/horologe/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond

	messageSource = "horologe-storefront"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wires the order event relay.
type RelayParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               txRunner
	Topics           topicClient
	Repository       outboxRepository
	DLQ              dlqRepository
	Registry         eventResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Relay drains outbox_events onto the order events topic. Rows are claimed
// with SKIP LOCKED inside one transaction per batch, so several relays can run.
type Relay struct {
	logg         *logger.Logger
	db           txRunner
	topics       topicClient
	repo         outboxRepository
	dlq          dlqRepository
	registry     eventResolver
	publishers   publisherFactory
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		cache := map[string]publisher{}
		factory = func(topic string) publisher {
			if pub, ok := cache[topic]; ok {
				return pub
			}
			pub := newGCPPublisher(params.Topics.Publisher(topic))
			if pub != nil {
				cache[topic] = pub
			}
			return pub
		}
	}

	return &Relay{
		logg:         params.Logger,
		db:           params.DB,
		topics:       params.Topics,
		repo:         params.Repository,
		dlq:          params.DLQ,
		registry:     params.Registry,
		publishers:   factory,
		metrics:      params.Metrics,
		batchSize:    positiveOr(params.Config.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(params.Config.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(params.Config.Outbox.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// Run polls until ctx is cancelled. Batch errors back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.topics.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	backoff := r.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		drained, err := r.drainBatch(ctx)
		if err != nil {
			r.logg.Error(ctx, "outbox relay batch failed", err)
			backoff = nextBackoff(backoff, r.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = r.pollInterval

		if drained == 0 {
			if err := sleep(ctx, withJitter(r.pollInterval)); err != nil {
				return err
			}
		}
	}
}

// drainBatch publishes one batch and returns the number of rows handled.
func (r *Relay) drainBatch(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := r.handle(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

func (r *Relay) handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return r.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, nil)
	}

	fields := r.eventFields(event, resolved)
	pubErr := r.publish(ctx, event, resolved)

	switch r.classify(event, pubErr) {
	case outcomePublished:
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.IncPublished(string(event.EventType))
		r.logg.Info(r.logg.WithFields(ctx, fields), "order event published")
	case outcomeRetry:
		fields["attempt_count"] = event.AttemptCount + 1
		logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", pubErr.Error())
		r.logg.Warn(logCtx, "order event publish failed, will retry")
		if err := r.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		r.metrics.IncRetried(string(event.EventType))
	case outcomeDeadLetter:
		reason := enums.OutboxDLQReasonNonRetryable
		var nonRetry registry.NonRetryableError
		if !errors.As(pubErr, &nonRetry) {
			reason = enums.OutboxDLQReasonMaxAttempts
			pubErr = fmt.Errorf("max publish attempts reached: %w", pubErr)
		}
		return r.deadLetter(ctx, tx, event, reason, pubErr, fields)
	}
	return nil
}

func (r *Relay) classify(event models.OutboxEvent, err error) outcome {
	if err == nil {
		return outcomePublished
	}
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) || event.AttemptCount+1 >= r.maxAttempts {
		return outcomeDeadLetter
	}
	return outcomeRetry
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	if fields == nil {
		fields = r.eventFields(event, nil)
	}
	fields["error_reason"] = reason
	logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", cause.Error())
	r.logg.Warn(logCtx, "order event moved to dead letter table")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	r.metrics.IncDeadLettered(string(event.EventType), string(reason))
	return nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	// ordering key keeps events of one order in sequence for subscribers
	// that enable message ordering
	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes:  resolved.Attributes(event.AggregateID, messageSource),
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (r *Relay) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		if resolved.Envelope.EventID != "" {
			fields["event_id"] = resolved.Envelope.EventID
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < ceiling {
		return next
	}
	return ceiling
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return &gcpPublisher{Publisher: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := p.Publisher.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return &orderedResult{result: res, publisher: p.Publisher, key: msg.OrderingKey}
}

// orderedResult resumes the ordering key after a failure; the client pauses
// a key once one of its messages fails.
type orderedResult struct {
	result    *gcppubsub.PublishResult
	publisher *gcppubsub.Publisher
	key       string
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.result.Get(ctx)
	if err != nil && r.key != "" {
		r.publisher.ResumePublish(r.key)
	}
	return id, err
}
