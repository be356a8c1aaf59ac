package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run. Zero leaves jobs unbounded.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval on whichever worker
// holds the lock. Jobs run in registration order; one failing job does not
// stop the rest of the cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		timeout:  params.JobTimeout,
		now:      time.Now,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run fires a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle aborted", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	won, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !won {
		s.logg.Debug(ctx, "cron lock held elsewhere; cycle skipped")
		return nil
	}
	defer func() {
		// Release even when shutdown cancelled ctx, or the next worker waits out the TTL.
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	var failed []string
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		if outcome := s.runJob(ctx, job); outcome != metrics.OutcomeSuccess {
			failed = append(failed, job.Name())
		}
	}
	summary := s.logg.WithField(ctx, "failed_jobs", failed)
	if len(failed) > 0 {
		s.logg.Warn(summary, "cron cycle finished with failures")
		return nil
	}
	s.logg.Info(summary, "cron cycle finished")
	return nil
}

// runJob reports the job's outcome. A panicking job is contained so the
// remaining jobs still run.
func (s *Service) runJob(ctx context.Context, job Job) (outcome string) {
	ctx = s.logg.WithField(ctx, "job", job.Name())
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	defer func() {
		if v := recover(); v != nil {
			outcome = metrics.OutcomePanic
			s.logg.Error(ctx, "cron job panicked", fmt.Errorf("panic: %v", v))
		}
		took := s.now().Sub(start)
		s.metrics.ObserveRun(job.Name(), outcome, took, s.now())
		if outcome == metrics.OutcomeSuccess {
			s.logg.Info(s.logg.WithField(ctx, "duration_ms", took.Milliseconds()), "cron job done")
		}
	}()

	if err := job.Run(runCtx); err != nil {
		s.logg.Error(ctx, "cron job failed", err)
		return metrics.OutcomeFailure
	}
	return metrics.OutcomeSuccess
}
