package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
)

const defaultPromptBatchSize = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reviewPromptTracker interface {
	ListDueForPrompt(ctx context.Context, limit int) ([]models.ReviewObligation, error)
	ShouldSuppressFurtherPrompts(ctx context.Context, lineItemID uuid.UUID) (bool, error)
	IncrementPromptCount(ctx context.Context, lineItemID uuid.UUID) error
}

// ReviewPromptJobParams configure the review reminder job.
type ReviewPromptJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Tracker   reviewPromptTracker
	Outbox    outboxEmitter
	BatchSize int
}

// NewReviewPromptJob builds the job that asks the notification worker to
// remind buyers about unreviewed items.
func NewReviewPromptJob(params ReviewPromptJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("review tracker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPromptBatchSize
	}
	return &reviewPromptJob{
		logg:      params.Logger,
		db:        params.DB,
		tracker:   params.Tracker,
		outbox:    params.Outbox,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type reviewPromptJob struct {
	logg      *logger.Logger
	db        txRunner
	tracker   reviewPromptTracker
	outbox    outboxEmitter
	batchSize int
	now       func() time.Time
}

func (j *reviewPromptJob) Name() string { return "review-prompts" }

func (j *reviewPromptJob) Run(ctx context.Context) error {
	due, err := j.tracker.ListDueForPrompt(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("query due review prompts: %w", err)
	}

	var errs error
	sent, suppressed := 0, 0
	for _, obligation := range due {
		stop, err := j.tracker.ShouldSuppressFurtherPrompts(ctx, obligation.OrderLineItemID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if stop {
			suppressed++
			continue
		}
		if err := j.prompt(ctx, obligation); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("prompt line item %s: %w", obligation.OrderLineItemID, err))
			continue
		}
		sent++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":        len(due),
		"sent":       sent,
		"suppressed": suppressed,
	})
	j.logg.Info(logCtx, "review prompt loop complete")
	return errs
}

// prompt emits the reminder before counting it. A failed count means the
// buyer may be reminded twice, never that a counted reminder went unsent.
func (j *reviewPromptJob) prompt(ctx context.Context, obligation models.ReviewObligation) error {
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewPromptRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   obligation.OrderID,
			Actor:         &outbox.ActorRef{Role: string(enums.ActorRoleSystem)},
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.ReviewPromptRequestedEvent{
				OrderLineItemID: obligation.OrderLineItemID,
				OrderID:         obligation.OrderID,
				BuyerID:         obligation.BuyerID,
				ProductID:       obligation.ProductID,
				PromptCount:     obligation.PromptCount + 1,
			},
		})
	})
	if err != nil {
		return err
	}
	return j.tracker.IncrementPromptCount(ctx, obligation.OrderLineItemID)
}
