package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MarkerStore is the slice of the redis client the guard needs.
type MarkerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard remembers which outbox events a subscriber has already applied.
// A marker is hg:idempotency:event:<consumer>:<event_id> holding the time it
// was first seen.
type Guard struct {
	store MarkerStore
	ttl   time.Duration
	now   func() time.Time
}

// NewGuard builds a guard; a zero ttl keeps markers forever.
func NewGuard(store MarkerStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed returns true for an event the consumer already saw.
// Otherwise the event is marked and false is returned.
func (g *Guard) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (seen bool, err error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("marking event %s: %w", eventID, err)
	}
	return !fresh, nil
}

// Delete clears the marker so a failed delivery can be retried.
func (g *Guard) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	switch consumer = strings.TrimSpace(consumer); {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("event:"+consumer, eventID.String()), nil
}
