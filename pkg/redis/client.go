package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = redis.Nil

var errNotInitialized = errors.New("redis client not initialized")

const namespace = "hg"

type keyKind string

const (
	kindIdempotency keyKind = "idempotency"
	kindRateLimit   keyKind = "rate_limit"
	kindCart        keyKind = "cart"
	kindAttempt     keyKind = "checkout_attempt"
	kindLock        keyKind = "lock"
	kindCoupon      keyKind = "coupon"
)

var (
	// compare-and-delete on the holder token
	unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

	// INCR and the first-hit PEXPIRE run as one unit so a counter never
	// outlives its window.
	incrExpireScript = `local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`
)

// commands is the subset of go-redis the storefront issues.
type commands interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Eval(context.Context, string, []string, ...any) *redis.Cmd
}

// Client wraps a pooled go-redis connection and owns the key layout.
type Client struct {
	cmd    commands
	closer func() error
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what the request idempotency middleware needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// Locker exposes the token-guarded lock primitives used by checkout and cron.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	LockKey(scope, id string) string
}

// New dials redis and fails fast when the server does not answer PING.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB, "pool_size": opts.PoolSize})
		logg.Info(ctx, "redis connection established")
	}
	return &Client{cmd: rdb, closer: rdb.Close}, nil
}

// options prefers HOROLOGE_REDIS_URL; explicit pool settings fill whatever
// the URL leaves unset.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	fillInt(&opts.PoolSize, cfg.PoolSize)
	fillInt(&opts.MinIdleConns, cfg.MinIdleConns)
	fillDuration(&opts.DialTimeout, cfg.DialTimeout)
	fillDuration(&opts.ReadTimeout, cfg.ReadTimeout)
	fillDuration(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func fillDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}

func (c *Client) commands() (commands, error) {
	if c == nil || c.cmd == nil {
		return nil, errNotInitialized
	}
	return c.cmd, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	cmd, err := c.commands()
	if err != nil {
		return "", err
	}
	return cmd.Get(ctx, key).Result()
}

// Set stores value under key; a zero ttl keeps the key until deleted.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Set(ctx, key, value, ttl).Err()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	cmd, err := c.commands()
	if err != nil {
		return false, err
	}
	return cmd.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Del(ctx, keys...).Err()
}

// IncrWithTTL bumps a counter and starts its ttl on the first hit.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	cmd, err := c.commands()
	if err != nil {
		return 0, err
	}
	return cmd.Eval(ctx, incrExpireScript, []string{key}, ttl.Milliseconds()).Int64()
}

// AcquireLock takes key for ttl when it is free. token names the holder.
func (c *Client) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, errors.New("lock token required")
	}
	if ttl <= 0 {
		return false, errors.New("lock ttl must be positive")
	}
	return c.SetNX(ctx, key, token, ttl)
}

// ReleaseLock deletes key only while it still carries token, so a holder
// whose lock expired cannot drop a successor's lock.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Eval(ctx, unlockScript, []string{key}, token).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	cmd, err := c.commands()
	if err != nil {
		return err
	}
	return cmd.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer()
}

func (c *Client) IdempotencyKey(scope, id string) string { return key(kindIdempotency, scope, id) }
func (c *Client) RateLimitKey(scope string) string       { return key(kindRateLimit, scope) }
func (c *Client) CartKey(cartID string) string           { return key(kindCart, cartID) }
func (c *Client) AttemptKey(attemptID string) string     { return key(kindAttempt, attemptID) }

// LockKey builds e.g. hg:lock:checkout_submit:<cart>.
func (c *Client) LockKey(scope, id string) string { return key(kindLock, scope, id) }

// CouponKey upper-cases the code; coupon codes are case-insensitive.
func (c *Client) CouponKey(code string) string { return key(kindCoupon, strings.ToUpper(code)) }

// key joins namespace, kind and the non-blank parts with ':'.
func key(kind keyKind, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(string(kind))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
