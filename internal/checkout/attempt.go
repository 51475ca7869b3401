package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/horologe/storefront-backend/internal/orders"
	"github.com/horologe/storefront-backend/internal/pricing"
	"github.com/horologe/storefront-backend/pkg/enums"
	"github.com/horologe/storefront-backend/pkg/redis"
	"github.com/horologe/storefront-backend/pkg/types"
)

// ErrAttemptNotFound is returned when an attempt id is unknown or expired.
var ErrAttemptNotFound = errors.New("checkout attempt not found")

// FailureKind classifies why an attempt ended in the failed state.
type FailureKind string

const (
	FailureOrderCreation  FailureKind = "order_creation"
	FailureVerification   FailureKind = "verification"
	FailureReconciliation FailureKind = "reconciliation"
)

type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// GatewayHandle is what the browser needs to open the payment dialog.
type GatewayHandle struct {
	OrderID  string `json:"razorpay_order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// Attempt is one run of the checkout state machine for a cart.
type Attempt struct {
	ID              uuid.UUID                `json:"id"`
	CartID          uuid.UUID                `json:"cart_id"`
	State           State                    `json:"state"`
	Method          enums.PaymentMethod      `json:"payment_method"`
	Breakdown       pricing.Breakdown        `json:"breakdown"`
	ShippingAddress types.ShippingAddress    `json:"shipping_address"`
	Items           []orders.CreateOrderItem `json:"items"`
	CouponCode      *string                  `json:"coupon_code,omitempty"`
	TrackingOrderID *uuid.UUID               `json:"tracking_order_id,omitempty"`
	OrderID         *uuid.UUID               `json:"order_id,omitempty"`
	Gateway         *GatewayHandle           `json:"gateway,omitempty"`
	Failure         *Failure                 `json:"failure,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// AttemptStore persists attempts between the submit call and the gateway callback.
type AttemptStore interface {
	Load(ctx context.Context, id uuid.UUID) (*Attempt, error)
	Save(ctx context.Context, attempt *Attempt) error
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	AttemptKey(attemptID string) string
}

type redisAttemptStore struct {
	kv  kvStore
	ttl time.Duration
}

// NewAttemptStore keeps attempts in Redis for ttl.
func NewAttemptStore(kv kvStore, ttl time.Duration) AttemptStore {
	return &redisAttemptStore{kv: kv, ttl: ttl}
}

func (s *redisAttemptStore) Load(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	raw, err := s.kv.Get(ctx, s.kv.AttemptKey(id.String()))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkout attempt: %w", err)
	}
	var attempt Attempt
	if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
		return nil, fmt.Errorf("decode checkout attempt: %w", err)
	}
	return &attempt, nil
}

func (s *redisAttemptStore) Save(ctx context.Context, attempt *Attempt) error {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode checkout attempt: %w", err)
	}
	return s.kv.Set(ctx, s.kv.AttemptKey(attempt.ID.String()), payload, s.ttl)
}
