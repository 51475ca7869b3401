package cron

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultUnpaidOrderTTL = 48 * time.Hour

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type ExpireOrdersJobParams struct {
	Orders    unpaidOrderExpirer
	TTL       time.Duration
	BatchSize int
}

// expireOrdersJob cancels gateway orders that were opened but never paid.
type expireOrdersJob struct {
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func NewExpireOrdersJob(params ExpireOrdersJobParams) (Job, error) {
	if params.Orders == nil {
		return nil, errors.New("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidOrderTTL
	}
	return &expireOrdersJob{
		orders: params.Orders,
		ttl:    ttl,
		batch:  params.BatchSize,
		now:    time.Now,
	}, nil
}

func (j *expireOrdersJob) Name() string { return "expire-unpaid-orders" }

func (j *expireOrdersJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
	if err != nil {
		return int64(expired), fmt.Errorf("expire unpaid orders: %w", err)
	}
	return int64(expired), nil
}
