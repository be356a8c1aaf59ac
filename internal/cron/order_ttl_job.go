package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-orderflow/internal/orders"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
)

const (
	defaultPendingTTL     = 72 * time.Hour
	defaultOrderBatchSize = 100
	pendingExpiredReason  = "order was not accepted in time"
)

// OrderTTLJobParams configure the pending order expiry job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderCanceler
	TTL       time.Duration
	BatchSize int
}

type pendingOrderCanceler interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	ApplyAction(ctx context.Context, input orders.ApplyActionInput) (*orders.OrderView, error)
}

// NewOrderTTLJob builds the cron job that cancels orders left pending past the TTL.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOrderBatchSize
	}
	return &orderTTLJob{
		logg:      params.Logger,
		orders:    params.Orders,
		ttl:       ttl,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type orderTTLJob struct {
	logg      *logger.Logger
	orders    pendingOrderCanceler
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

// Run cancels stale pending orders through the order facade as the system
// actor, so the transition table and version check apply as for any caller.
func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.ListStalePending(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs error
	canceled, skipped := 0, 0
	for _, order := range stale {
		_, err := j.orders.ApplyAction(ctx, orders.ApplyActionInput{
			OrderID: order.ID,
			Action:  enums.OrderActionCancel,
			Actor:   orders.Actor{Role: enums.ActorRoleSystem},
			Payload: orders.ActionPayload{CancelReason: pendingExpiredReason},
		})
		if err == nil {
			canceled++
			continue
		}
		switch pkgerrors.CodeOf(err) {
		case pkgerrors.CodeInvalidTransition, pkgerrors.CodeConcurrentModification:
			// the distributor or buyer acted after the query
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(stale),
		"canceled": canceled,
		"skipped":  skipped,
	})
	j.logg.Info(logCtx, "pending order expiry complete")
	return errs
}
