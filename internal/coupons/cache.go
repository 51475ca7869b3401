package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/horologe/storefront-backend/pkg/db/models"
	"github.com/horologe/storefront-backend/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CouponKey(code string) string
}

// Cache keeps coupon rows in Redis for a short TTL. A nil Cache is a no-op.
type Cache struct {
	kv  kvStore
	ttl time.Duration
}

// NewCache returns nil when caching is disabled.
func NewCache(kv kvStore, ttl time.Duration) *Cache {
	if kv == nil || ttl <= 0 {
		return nil
	}
	return &Cache{kv: kv, ttl: ttl}
}

// Get reports a miss with (nil, nil).
func (c *Cache) Get(ctx context.Context, code string) (*models.Coupon, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.kv.Get(ctx, c.kv.CouponKey(code))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read coupon cache: %w", err)
	}
	var coupon models.Coupon
	if err := json.Unmarshal([]byte(raw), &coupon); err != nil {
		return nil, fmt.Errorf("decode cached coupon: %w", err)
	}
	return &coupon, nil
}

func (c *Cache) Set(ctx context.Context, coupon *models.Coupon) error {
	if c == nil || coupon == nil {
		return nil
	}
	payload, err := json.Marshal(coupon)
	if err != nil {
		return fmt.Errorf("encode coupon: %w", err)
	}
	return c.kv.Set(ctx, c.kv.CouponKey(coupon.Code), payload, c.ttl)
}

func (c *Cache) Invalidate(ctx context.Context, codes ...string) error {
	if c == nil || len(codes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		if code != "" {
			keys = append(keys, c.kv.CouponKey(code))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.kv.Del(ctx, keys...)
}
