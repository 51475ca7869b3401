package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/pkg/redis"
)

const (
	lockScope       = "cron"
	lockName        = "maintenance"
	defaultLockTTL  = 10 * time.Minute
	releaseDeadline = 5 * time.Second
)

// Lock keeps concurrent workers from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLock holds a token-guarded key; release only deletes the key while the
// token still matches.
type RedisLock struct {
	locker redis.Locker
	key    string
	ttl    time.Duration
	token  string
}

func NewRedisLock(locker redis.Locker, ttl time.Duration) (*RedisLock, error) {
	if locker == nil {
		return nil, errors.New("redis locker required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{locker: locker, key: locker.LockKey(lockScope, lockName), ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.locker.AcquireLock(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	// the run context may already be cancelled on shutdown
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseDeadline)
	defer cancel()
	if err := l.locker.ReleaseLock(releaseCtx, l.key, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.token = ""
	return nil
}
