package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/horologe/storefront-backend/pkg/logger"
	"github.com/horologe/storefront-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// ServiceParams configure the maintenance service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval while holding the
// shared lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	case params.Registry == nil:
		return nil, errors.New("registry required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "maintenance worker stopping")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// RunOnce executes a single cycle and returns the combined job errors.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) cycle(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "maintenance cycle failed", err)
	}
}

// runCycle runs every job even when an earlier one fails. The returned error
// combines the failures in registration order.
func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "maintenance lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", relErr)
		}
	}()

	var (
		errs  error
		total int64
		start = time.Now()
	)
	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		affected, err := s.runJob(ctx, job)
		total += affected
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event":         "cron.cycle",
		"duration_ms":   time.Since(start).Milliseconds(),
		"rows_affected": total,
		"failed_jobs":   len(multierr.Errors(errs)),
	})
	s.logg.Info(ctx, "maintenance cycle finished")
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) (int64, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	affected, err := job.Run(ctx)
	took := time.Since(start)
	s.metrics.ObserveRun(job.Name(), affected, err, took)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"duration_ms":   took.Milliseconds(),
		"rows_affected": affected,
	})
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return affected, err
	}
	s.logg.Debug(ctx, "job completed")
	return affected, nil
}
