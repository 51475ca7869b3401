package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ActorKind says which side of the shop caused an event.
type ActorKind = string

const (
	ActorShopper ActorKind = "shopper"
	ActorAdmin   ActorKind = "admin"
	ActorSystem  ActorKind = "system"
)

// ActorRef identifies who produced the event. ID is the admin subject for
// admin actions and empty otherwise.
type ActorRef struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

func Shopper() *ActorRef { return &ActorRef{Kind: ActorShopper} }
func System() *ActorRef  { return &ActorRef{Kind: ActorSystem} }

// Admin records the acting admin; a blank subject still marks the event as
// an admin action.
func Admin(subject string) *ActorRef { return &ActorRef{Kind: ActorAdmin, ID: subject} }

type actorKey struct{}

// WithActor attaches the caller identity to ctx for events emitted further
// down the request.
func WithActor(ctx context.Context, actor *ActorRef) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or fallback.
func ActorFromContext(ctx context.Context, fallback *ActorRef) *ActorRef {
	if actor, ok := ctx.Value(actorKey{}).(*ActorRef); ok && actor != nil {
		return actor
	}
	return fallback
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// published verbatim as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	return env, nil
}

// HasData is false for an absent or JSON null data field.
func (e PayloadEnvelope) HasData() bool {
	data := bytes.TrimSpace(e.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}
