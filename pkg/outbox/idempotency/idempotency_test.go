package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	seen    map[string]any
	failSet error
	ttls    map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.failSet != nil {
		return false, f.failSet
	}
	if _, ok := f.seen[key]; ok {
		return false, nil
	}
	f.seen[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "horologe:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.seen, k)
	}
	return nil
}

func TestGuardMarksOnce(t *testing.T) {
	store := newFakeStore()
	guard, err := NewGuard(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	guard.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("IST", 19800)) }
	eventID := uuid.New()

	already, err := guard.CheckAndMarkProcessed(context.Background(), "analytics", eventID)
	if err != nil || already {
		t.Fatalf("first delivery: already=%v err=%v", already, err)
	}
	key := "horologe:idempotency:event:analytics:" + eventID.String()
	if store.ttls[key] != 24*time.Hour {
		t.Fatalf("unexpected marker ttl %v for %s", store.ttls[key], key)
	}
	if store.seen[key] != "2025-03-01T03:30:00Z" {
		t.Fatalf("marker should hold the first-seen time in UTC, got %v", store.seen[key])
	}

	already, err = guard.CheckAndMarkProcessed(context.Background(), "analytics", eventID)
	if err != nil || !already {
		t.Fatalf("redelivery should be detected: already=%v err=%v", already, err)
	}

	// other consumers track the same event independently
	already, err = guard.CheckAndMarkProcessed(context.Background(), "mailer", eventID)
	if err != nil || already {
		t.Fatalf("separate consumer: already=%v err=%v", already, err)
	}
}

func TestGuardDeleteAllowsRetry(t *testing.T) {
	guard, _ := NewGuard(newFakeStore(), time.Hour)
	eventID := uuid.New()
	ctx := context.Background()

	if _, err := guard.CheckAndMarkProcessed(ctx, "analytics", eventID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := guard.Delete(ctx, "analytics", eventID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	already, err := guard.CheckAndMarkProcessed(ctx, "analytics", eventID)
	if err != nil || already {
		t.Fatalf("expected a fresh mark after delete: already=%v err=%v", already, err)
	}
}

func TestGuardValidation(t *testing.T) {
	if _, err := NewGuard(nil, time.Hour); err == nil {
		t.Fatal("expected nil store to fail")
	}
	if _, err := NewGuard(newFakeStore(), -time.Second); err == nil {
		t.Fatal("expected negative ttl to fail")
	}

	guard, _ := NewGuard(newFakeStore(), time.Hour)
	if _, err := guard.CheckAndMarkProcessed(context.Background(), " ", uuid.New()); err == nil {
		t.Fatal("expected blank consumer to fail")
	}
	if _, err := guard.CheckAndMarkProcessed(context.Background(), "analytics", uuid.Nil); err == nil {
		t.Fatal("expected nil event id to fail")
	}

	store := newFakeStore()
	store.failSet = errors.New("redis down")
	guard, _ = NewGuard(store, time.Hour)
	if _, err := guard.CheckAndMarkProcessed(context.Background(), "analytics", uuid.New()); !errors.Is(err, store.failSet) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}
