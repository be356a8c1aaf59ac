package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
)

// RetentionPolicy names a table sweep. Purge deletes rows that aged out before
// cutoff and reports how many went.
type RetentionPolicy struct {
	Name      string
	Retention time.Duration
	Purge     func(ctx context.Context, cutoff time.Time) (int64, error)
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, minAttempts int) (int64, error)
}

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetention drops published order events and dead rows that used up
// maxAttempts. Events still being retried are never touched.
func OutboxRetention(repo outboxPurger, retention time.Duration, maxAttempts int) RetentionPolicy {
	return RetentionPolicy{
		Name:      "outbox-retention",
		Retention: retention,
		Purge: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(ctx, cutoff, maxAttempts)
		},
	}
}

// NotificationRetention drops notifications read before the window. Unread
// ones stay regardless of age.
func NotificationRetention(repo readNotificationPurger, retention time.Duration) RetentionPolicy {
	return RetentionPolicy{
		Name:      "notification-cleanup",
		Retention: retention,
		Purge:     repo.DeleteReadBefore,
	}
}

type retentionJob struct {
	logg   *logger.Logger
	policy RetentionPolicy
	now    func() time.Time
}

func NewRetentionJob(logg *logger.Logger, policy RetentionPolicy) (Job, error) {
	switch {
	case logg == nil:
		return nil, errors.New("logger required")
	case policy.Name == "":
		return nil, errors.New("retention policy name required")
	case policy.Purge == nil:
		return nil, fmt.Errorf("%s: purge func required", policy.Name)
	case policy.Retention < 24*time.Hour:
		return nil, fmt.Errorf("%s: retention %s is shorter than a day", policy.Name, policy.Retention)
	}
	return &retentionJob{logg: logg, policy: policy, now: time.Now}, nil
}

func (j *retentionJob) Name() string { return j.policy.Name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.policy.Retention)
	deleted, err := j.policy.Purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.policy.Name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "retention sweep complete")
	return nil
}
