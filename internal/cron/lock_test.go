package cron

import (
	"context"
	"testing"
	"time"
)

type memoryLocker struct {
	held map[string]string
	ttl  time.Duration
}

func (m *memoryLocker) AcquireLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = token
	m.ttl = ttl
	return true, nil
}

func (m *memoryLocker) ReleaseLock(_ context.Context, key, token string) error {
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

func (m *memoryLocker) LockKey(scope, id string) string { return "lock:" + scope + ":" + id }

func TestRedisLockIsExclusiveAndReleases(t *testing.T) {
	locker := &memoryLocker{held: map[string]string{}}
	first, err := NewRedisLock(locker, 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(locker, time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if locker.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %v", locker.ttl)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second acquire should fail while held")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release without ownership: %v", err)
	}
	if _, held := locker.held["lock:cron:maintenance"]; !held {
		t.Fatal("non-owner release must not free the lock")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := first.Release(cancelled); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(locker.held) != 0 {
		t.Fatal("expected lock freed")
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}
