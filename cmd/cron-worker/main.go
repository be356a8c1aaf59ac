package main

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-orderflow/internal/bootstrap"
	"github.com/angelmondragon/packfinderz-orderflow/internal/cron"
	"github.com/angelmondragon/packfinderz-orderflow/internal/notifications"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/metrics"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
)

const (
	cronLockName          = "cron-worker"
	outboxRetention       = 30 * 24 * time.Hour
	notificationRetention = 90 * 24 * time.Hour
	jobTimeout            = 10 * time.Minute
)

func main() {
	rt := bootstrap.Start("cron-worker")
	defer rt.Close()
	cfg := rt.Config

	dbClient := rt.Database()
	redisClient := rt.Redis()
	stack := rt.Orders(dbClient, prometheus.DefaultRegisterer)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cronLockName, cfg.App.Env), cfg.Cron.Interval)
	rt.Must("cron lock", err)
	jobs, err := buildJobs(cfg, rt.Logger, dbClient, stack)
	rt.Must("cron jobs", err)
	registry, err := cron.NewRegistry(jobs...)
	rt.Must("cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     rt.Logger,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: jobTimeout,
	})
	rt.Must("cron service", err)

	ctx, stop := rt.SignalContext(map[string]any{"jobs": registry.Names()})
	defer stop()
	rt.Logger.Info(ctx, "cron worker started")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("cron worker stopped", err)
	}
	rt.Logger.Info(ctx, "cron worker stopped")
}

// buildJobs lists the jobs in the order a cycle runs them.
func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, stack bootstrap.OrderStack) ([]cron.Job, error) {
	orderTTL, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger: logg,
		Orders: stack.Orders,
		TTL:    cfg.Orders.PendingTTL,
	})
	if err != nil {
		return nil, err
	}
	prompts, err := cron.NewReviewPromptJob(cron.ReviewPromptJobParams{
		Logger:    logg,
		DB:        dbClient,
		Tracker:   stack.Reviews,
		Outbox:    stack.Outbox,
		BatchSize: cfg.Orders.ReviewPromptBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewRetentionJob(logg,
		cron.OutboxRetention(outbox.NewRepository(dbClient.DB()), outboxRetention, cfg.Outbox.MaxAttempts))
	if err != nil {
		return nil, err
	}
	cleanup, err := cron.NewRetentionJob(logg,
		cron.NotificationRetention(notifications.NewRepository(dbClient.DB()), notificationRetention))
	if err != nil {
		return nil, err
	}
	return []cron.Job{orderTTL, prompts, retention, cleanup}, nil
}
