package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/dukapay-backend/pkg/logger"
	"github.com/angelmondragon/dukapay-backend/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// ErrUnknownJob is returned by RunJob for a name that was never registered.
var ErrUnknownJob = errors.New("unknown cron job")

type jobMetrics interface {
	ObserveRun(job string, duration time.Duration, affected int, err error)
	IncSkipped()
}

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobMetrics
	Interval time.Duration
}

// Service runs the registered jobs on a fixed cadence. Only the replica holding
// the lock runs a cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  jobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	recorder := params.Metrics
	if recorder == nil {
		recorder = metrics.NewCronJobMetrics(nil)
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  recorder,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "cron cycle failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logg.Error(ctx, "cron cycle failed", err)
			}
		}
	}
}

// RunOnce runs every job once under the lock. A failing job does not stop the
// others.
func (s *Service) RunOnce(ctx context.Context) error {
	release, ok, err := s.acquire(ctx)
	if err != nil || !ok {
		return err
	}
	defer release()

	for i, job := range s.registry.Jobs() {
		if i > 0 {
			held, err := s.lock.Extend(ctx)
			if err != nil {
				return fmt.Errorf("lock extend: %w", err)
			}
			if !held {
				s.logg.Warn(s.logg.WithField(ctx, "next_job", job.Name()), "cron lock lost mid-cycle; stopping")
				return nil
			}
		}
		_ = s.runJob(ctx, job)
	}
	return nil
}

// RunJob runs a single named job under the lock and returns its error. Used
// for operator-triggered runs.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, found := s.registry.Lookup(name)
	if !found {
		return fmt.Errorf("%w %q (known: %v)", ErrUnknownJob, name, s.registry.Names())
	}
	release, ok, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cron lock held elsewhere; %s not run", name)
	}
	defer release()
	return s.runJob(ctx, job)
}

func (s *Service) acquire(ctx context.Context) (func(), bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "cron lock held elsewhere; skipping cycle")
		return nil, false, nil
	}
	release := func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}
	return release, true, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	affected, err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveRun(job.Name(), duration, affected, err)

	jobCtx = s.logg.WithFields(jobCtx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"affected":    affected,
	})
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
