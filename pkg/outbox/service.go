package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/horologe/storefront-backend/pkg/db"
	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/logger"
)

const (
	currentEnvelopeVersion = 1
	onceConstraint         = "ux_outbox_events_type_aggregate"
)

// DomainEvent is a state change to be published after the surrounding transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	if !e.EventType.IsValid() {
		return fmt.Errorf("unknown event type %q", e.EventType)
	}
	if !e.AggregateType.IsValid() {
		return fmt.Errorf("unknown aggregate type %q", e.AggregateType)
	}
	if e.AggregateID == uuid.Nil {
		return errors.New("aggregate id required")
	}
	return nil
}

// Service writes domain events into outbox_events for the relay to publish.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: func() time.Time { return time.Now().UTC() }}
}

// Emit queues event inside tx. The row only becomes visible if tx commits.
// The row id doubles as the envelope's eventId, so consumers can
// deduplicate redeliveries and DLQ replays on it.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, err := s.buildRow(tx, event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.queued(ctx, row)
	return nil
}

// EmitOnce queues event unless one of the same type already exists for the
// aggregate. A concurrent duplicate caught by the unique index is rolled back
// to a savepoint so tx stays usable.
func (s *Service) EmitOnce(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, err := s.buildRow(tx, event)
	if err != nil {
		return err
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil || exists {
		return err
	}
	err = tx.Transaction(func(inner *gorm.DB) error {
		return s.repo.Insert(inner, row)
	})
	if dbpkg.IsUniqueViolation(err, onceConstraint) {
		return nil
	}
	if err != nil {
		return err
	}
	s.queued(ctx, row)
	return nil
}

func (s *Service) buildRow(tx *gorm.DB, event DomainEvent) (models.OutboxEvent, error) {
	if tx == nil {
		return models.OutboxEvent{}, errors.New("transaction required")
	}
	if err := event.validate(); err != nil {
		return models.OutboxEvent{}, err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if event.Version == 0 {
		event.Version = currentEnvelopeVersion
	}

	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    event.Version,
		EventID:    id.String(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, err
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, nil
}

func (s *Service) queued(ctx context.Context, row models.OutboxEvent) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event_id":       row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
	}), "outbox event queued")
}
