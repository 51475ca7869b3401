package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/redis"
)

// ErrCartNotFound is returned when the cart expired or never existed.
var ErrCartNotFound = errors.New("cart not found")

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(cartID string) string
}

// Store persists carts in Redis as JSON with a sliding TTL.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type redisStore struct {
	kv  kvStore
	ttl time.Duration
}

// NewStore builds a Redis-backed cart store.
func NewStore(kv kvStore, ttl time.Duration) (Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cart ttl must be positive")
	}
	return &redisStore{kv: kv, ttl: ttl}, nil
}

func (s *redisStore) Load(ctx context.Context, id uuid.UUID) (*Cart, error) {
	raw, err := s.kv.Get(ctx, s.kv.CartKey(id.String()))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

func (s *redisStore) Save(ctx context.Context, c *Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Set(ctx, s.kv.CartKey(c.ID.String()), payload, s.ttl)
}

func (s *redisStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.kv.Del(ctx, s.kv.CartKey(id.String()))
}
