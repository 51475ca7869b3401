package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmd: fake}
	key := client.RateLimitKey("checkout:10.0.0.1")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d got %d", want, got)
		}
	}
	if fake.ttls[key] != time.Minute {
		t.Fatalf("expected a one minute window, got %v", fake.ttls[key])
	}
	if fake.expires != 1 {
		t.Fatalf("expected ttl to be set once, got %d", fake.expires)
	}
}

func TestLockLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmd: newFakeCommands()}
	key := client.LockKey("checkout_submit", "cart-1")

	ok, err := client.AcquireLock(ctx, key, "attempt-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = client.AcquireLock(ctx, key, "attempt-b", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("second acquire should fail while held")
	}

	if err := client.ReleaseLock(ctx, key, "attempt-b"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if holder, err := client.Get(ctx, key); err != nil || holder != "attempt-a" {
		t.Fatalf("lock should still belong to attempt-a, got %q err=%v", holder, err)
	}

	if err := client.ReleaseLock(ctx, key, "attempt-a"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after release, got %v", err)
	}
}

func TestAcquireLockRejectsBadArguments(t *testing.T) {
	client := &Client{cmd: newFakeCommands()}
	if _, err := client.AcquireLock(context.Background(), "k", " ", time.Minute); err == nil {
		t.Fatal("blank token should be rejected")
	}
	if _, err := client.AcquireLock(context.Background(), "k", "t", 0); err == nil {
		t.Fatal("zero ttl should be rejected")
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := (&Client{}).Set(context.Background(), "k", "v", 0); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("closing nil client: %v", err)
	}
}

func TestDelWithoutKeysIsNoop(t *testing.T) {
	if err := (&Client{}).Del(context.Background()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("admin:1|POST|/x", "id"): "hg:idempotency:admin:1|POST|/x:id",
		client.RateLimitKey("login"):                   "hg:rate_limit:login",
		client.CartKey("c1"):                           "hg:cart:c1",
		client.AttemptKey("a1"):                        "hg:checkout_attempt:a1",
		client.LockKey("checkout_submit", ""):          "hg:lock:checkout_submit",
		client.LockKey(" cron ", "maintenance"):        "hg:lock:cron:maintenance",
		client.CouponKey("welcome10"):                  "hg:coupon:WELCOME10",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("expected %q got %q", want, got)
		}
	}
}

func TestOptions(t *testing.T) {
	opts, err := options(config.RedisConfig{
		URL:         "redis://:pw@cache:6380/2",
		DB:          5,
		PoolSize:    20,
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("url settings lost: %+v", opts)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != time.Second {
		t.Fatalf("pool settings not applied: pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 3})
	if err != nil {
		t.Fatalf("options from address: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 3 {
		t.Fatalf("unexpected address options %+v", opts)
	}

	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	if _, err := options(config.RedisConfig{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

// fakeCommands is an in-memory stand-in that understands the two scripts the
// client evaluates.
type fakeCommands struct {
	data    map[string]string
	ttls    map[string]time.Duration
	expires int
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			n++
		}
		delete(f.data, key)
		delete(f.ttls, key)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeCommands) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected eval arity"))
	}
	key := keys[0]
	switch script {
	case unlockScript:
		if f.data[key] == fmt.Sprint(args[0]) {
			delete(f.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case incrExpireScript:
		var n int64
		fmt.Sscan(f.data[key], &n)
		n++
		f.data[key] = fmt.Sprint(n)
		if ms, _ := args[0].(int64); n == 1 && ms > 0 {
			f.ttls[key] = time.Duration(ms) * time.Millisecond
			f.expires++
		}
		return redis.NewCmdResult(n, nil)
	}
	return redis.NewCmdResult(nil, errors.New("unknown script"))
}
