package types

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/horologe/storefront-backend/pkg/enums"
)

// Envelope is an outbox event as delivered over Pub/Sub.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	ActorKind     string
	Payload       json.RawMessage
}

// ErrUnsupportedEvent marks events the analytics sink does not record.
var ErrUnsupportedEvent = errors.New("unsupported analytics event type")
