package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/internal/disputes"
	"github.com/angelmondragon/packfinderz-orderflow/internal/refunds"
	"github.com/angelmondragon/packfinderz-orderflow/internal/repo"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type refundFlow interface {
	CheckWindow(order *models.Order) error
	Request(ctx context.Context, tx *gorm.DB, order *models.Order, input refunds.RequestInput, buyerID uuid.UUID) (*models.RefundRequest, error)
	Get(ctx context.Context, tx *gorm.DB, refundID uuid.UUID) (*models.RefundRequest, error)
	Resolve(ctx context.Context, tx *gorm.DB, order *models.Order, refund *models.RefundRequest, res refunds.Resolution) (*models.RefundRequest, error)
	ListForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.RefundRequest, error)
}

type disputeFlow interface {
	Lodge(ctx context.Context, tx *gorm.DB, order *models.Order, input disputes.LodgeInput, buyerID uuid.UUID) (*models.Dispute, *models.RefundRequest, error)
	Get(ctx context.Context, tx *gorm.DB, disputeID uuid.UUID) (*models.Dispute, error)
	Resolve(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, res disputes.Resolution) (*models.Dispute, error)
	ListForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.Dispute, error)
}

type reviewTracker interface {
	OpenPending(ctx context.Context, tx *gorm.DB, order *models.Order) error
	OnOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) ([]uuid.UUID, error)
	RecordReview(ctx context.Context, tx *gorm.DB, buyerID, lineItemID uuid.UUID) (*models.ReviewObligation, error)
}

type actionMetrics interface {
	ObserveTransition(action, from, to string)
	ObserveRejection(action, code string)
	ObserveDuration(action string, d time.Duration)
}

// Service is the single entry point for order mutations. Every call runs in
// one database transaction; an error leaves nothing behind.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	ApplyAction(ctx context.Context, input ApplyActionInput) (*OrderView, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderView, error)
	ResolveRefund(ctx context.Context, input ResolveRefundInput) (*OrderView, error)
	ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*OrderView, error)
	RecordReview(ctx context.Context, lineItemID uuid.UUID, actor Actor) (*models.ReviewObligation, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ServiceParams wires the facade. Metrics and Logger are optional.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Refunds    refundFlow
	Disputes   disputeFlow
	Reviews    reviewTracker
	Metrics    actionMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	refunds  refundFlow
	disputes disputeFlow
	reviews  reviewTracker
	metrics  actionMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order facade with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund service required")
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("dispute service required")
	}
	if params.Reviews == nil {
		return nil, fmt.Errorf("review tracker required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repository,
		tx:       params.Tx,
		outbox:   params.Outbox,
		refunds:  params.Refunds,
		disputes: params.Disputes,
		reviews:  params.Reviews,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if input.BuyerID == uuid.Nil || input.DistributorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and distributor required")
	}
	if input.BuyerID == input.DistributorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and distributor must differ")
	}
	if !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery method %q", input.DeliveryMethod))
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line item")
	}

	order := &models.Order{
		BuyerID:        input.BuyerID,
		DistributorID:  input.DistributorID,
		Status:         enums.OrderStatusPending,
		DeliveryMethod: input.DeliveryMethod,
		Version:        1,
	}
	total := decimal.Zero
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: product required", i+1))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: quantity must be positive", i+1))
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %d: unit price must not be negative", i+1))
		}
		line := models.OrderLineItem{
			ProductID: item.ProductID,
			Position:  i + 1,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2),
		}
		total = total.Add(line.Subtotal())
		order.Items = append(order.Items, line)
	}
	order.OrderTotal = total

	var view *OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()
		order.CreatedAt = now
		order.UpdatedAt = now
		r := s.repo.WithTx(tx)
		if err := r.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		stored, err := r.FindByID(ctx, order.ID)
		if err != nil {
			return repo.Translate(err, "order")
		}
		view = buildOrderView(stored, nil, nil, enums.ActorRoleBuyer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) ApplyAction(ctx context.Context, input ApplyActionInput) (view *OrderView, err error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", input.Action))
	}
	if err := validateActor(input.Actor); err != nil {
		return nil, err
	}

	start := s.now()
	var from, to enums.OrderStatus
	defer func() {
		if s.metrics == nil {
			return
		}
		s.metrics.ObserveDuration(string(input.Action), s.now().Sub(start))
		if err != nil {
			s.metrics.ObserveRejection(string(input.Action), string(pkgerrors.CodeOf(err)))
			return
		}
		s.metrics.ObserveTransition(string(input.Action), string(from), string(to))
	}()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		order, err := r.FindByID(ctx, input.OrderID)
		if err != nil {
			return repo.Translate(err, "order")
		}
		if err := authorize(order, input.Actor); err != nil {
			return err
		}
		if input.Action == enums.OrderActionRequestRefund && input.Actor.Role == enums.ActorRoleBuyer {
			if err := s.refunds.CheckWindow(order); err != nil {
				return err
			}
		}

		tracking := strings.TrimSpace(input.Payload.TrackingNumber)
		next, err := Decide(order.Status, input.Action, input.Actor.Role, transitionContext(order, tracking))
		if err != nil {
			return err
		}
		from, to = order.Status, next

		now := s.now().UTC()
		updates := map[string]any{"status": next, "updated_at": now}
		actor := &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)}
		var events []outbox.DomainEvent

		switch input.Action {
		case enums.OrderActionAccept:
			updates["accepted_at"] = now
		case enums.OrderActionReject, enums.OrderActionCancel:
			updates["canceled_at"] = now
			if reason := strings.TrimSpace(input.Payload.CancelReason); reason != "" {
				updates["cancel_reason"] = reason
			}
		case enums.OrderActionShip:
			updates["tracking_number"] = tracking
			updates["shipped_at"] = now
		case enums.OrderActionDeliver:
			updates["delivered_at"] = now
			if err := s.reviews.OpenPending(ctx, tx, order); err != nil {
				return err
			}
		case enums.OrderActionComplete:
			updates["completed_at"] = now
			completed := *order
			completed.Status = next
			lineItemIDs, err := s.reviews.OnOrderCompleted(ctx, tx, &completed)
			if err != nil {
				return err
			}
			events = append(events, orderEvent(order, enums.EventOrderCompleted, actor, payloads.OrderCompletedEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				DistributorID: order.DistributorID,
				LineItemIDs:   lineItemIDs,
				CompletedAt:   now,
			}))
		case enums.OrderActionRequestRefund:
			if input.Payload.Refund == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "refund details required")
			}
			p := input.Payload.Refund
			refund, err := s.refunds.Request(ctx, tx, order, refunds.RequestInput{
				LineItemIDs: p.LineItemIDs,
				Amount:      p.Amount,
				Reason:      p.Reason,
				Category:    p.Category,
			}, input.Actor.UserID)
			if err != nil {
				return err
			}
			events = append(events, orderEvent(order, enums.EventRefundRequested, actor, payloads.RefundRequestedEvent{
				RefundID:      refund.ID,
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				DistributorID: order.DistributorID,
				Amount:        refund.Amount,
				Category:      refund.ReasonCategory,
			}))
		case enums.OrderActionLodgeDispute:
			if input.Payload.Dispute == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "dispute details required")
			}
			p := input.Payload.Dispute
			dispute, _, err := s.disputes.Lodge(ctx, tx, order, disputes.LodgeInput{
				RefundID: p.RefundID,
				Details:  p.Details,
				Amount:   p.Amount,
			}, input.Actor.UserID)
			if err != nil {
				return err
			}
			events = append(events, orderEvent(order, enums.EventDisputeLodged, actor, payloads.DisputeLodgedEvent{
				DisputeID:     dispute.ID,
				RefundID:      dispute.RefundID,
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				DistributorID: order.DistributorID,
				DisputeAmount: dispute.DisputeAmount,
			}))
		}

		if err := s.bumpVersion(ctx, r, order, updates); err != nil {
			return err
		}

		if from != to {
			var trackingRef *string
			if input.Action == enums.OrderActionShip {
				trackingRef = &tracking
			}
			events = append([]outbox.DomainEvent{orderEvent(order, enums.EventOrderTransitioned, actor, payloads.OrderTransitionedEvent{
				OrderID:        order.ID,
				BuyerID:        order.BuyerID,
				DistributorID:  order.DistributorID,
				Action:         input.Action,
				FromStatus:     from,
				ToStatus:       to,
				TrackingNumber: trackingRef,
				Version:        order.Version + 1,
			})}, events...)
		}
		for _, event := range events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
			}
		}

		view, err = s.loadView(ctx, tx, order.ID, input.Actor.Role)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, input.OrderID.String()), map[string]any{
			"action":     string(input.Action),
			"from":       string(from),
			"to":         string(to),
			"actor_role": string(input.Actor.Role),
		})
		s.logg.Info(logCtx, "order action applied")
	}
	return view, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	var view *OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return repo.Translate(err, "order")
		}
		if err := authorize(order, actor); err != nil {
			return err
		}
		view, err = s.buildView(ctx, tx, order, actor.Role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) ResolveRefund(ctx context.Context, input ResolveRefundInput) (*OrderView, error) {
	if input.RefundID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	if err := validateActor(input.Actor); err != nil {
		return nil, err
	}
	if input.Actor.Role != enums.ActorRoleAdmin && input.Actor.Role != enums.ActorRoleDistributor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only distributors and admins resolve refunds")
	}

	var view *OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		refund, err := s.refunds.Get(ctx, tx, input.RefundID)
		if err != nil {
			return err
		}
		r := s.repo.WithTx(tx)
		order, err := r.FindByID(ctx, refund.OrderID)
		if err != nil {
			return repo.Translate(err, "order")
		}
		if err := authorize(order, input.Actor); err != nil {
			return err
		}

		resolved, err := s.refunds.Resolve(ctx, tx, order, refund, refunds.Resolution{
			Decision: input.Decision,
			Note:     input.Note,
			ActorID:  input.Actor.UserID,
		})
		if err != nil {
			return err
		}
		if err := s.bumpVersion(ctx, r, order, map[string]any{"updated_at": s.now().UTC()}); err != nil {
			return err
		}

		actor := &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)}
		if err := s.outbox.Emit(ctx, tx, orderEvent(order, enums.EventRefundResolved, actor, payloads.RefundResolvedEvent{
			RefundID:      resolved.ID,
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			DistributorID: order.DistributorID,
			Status:        resolved.Status,
			Amount:        resolved.Amount,
			Note:          resolved.ResolutionNote,
		})); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit refund event")
		}

		view, err = s.loadView(ctx, tx, order.ID, input.Actor.Role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*OrderView, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if err := validateActor(input.Actor); err != nil {
		return nil, err
	}
	if input.Actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins resolve disputes")
	}

	var view *OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dispute, err := s.disputes.Get(ctx, tx, input.DisputeID)
		if err != nil {
			return err
		}
		r := s.repo.WithTx(tx)
		order, err := r.FindByID(ctx, dispute.OrderID)
		if err != nil {
			return repo.Translate(err, "order")
		}

		resolved, err := s.disputes.Resolve(ctx, tx, dispute, disputes.Resolution{
			Status:        input.Status,
			ResultDetails: input.ResultDetails,
			ActorID:       input.Actor.UserID,
		})
		if err != nil {
			return err
		}
		if err := s.bumpVersion(ctx, r, order, map[string]any{"updated_at": s.now().UTC()}); err != nil {
			return err
		}

		var details string
		if resolved.DisputeResultDetails != nil {
			details = *resolved.DisputeResultDetails
		}
		actor := &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)}
		if err := s.outbox.Emit(ctx, tx, orderEvent(order, enums.EventDisputeResolved, actor, payloads.DisputeResolvedEvent{
			DisputeID:     resolved.ID,
			RefundID:      resolved.RefundID,
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			DistributorID: order.DistributorID,
			Status:        resolved.Status,
			ResultDetails: details,
		})); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit dispute event")
		}

		view, err = s.loadView(ctx, tx, order.ID, input.Actor.Role)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RecordReview(ctx context.Context, lineItemID uuid.UUID, actor Actor) (*models.ReviewObligation, error) {
	if lineItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item id required")
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != enums.ActorRoleBuyer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers record reviews")
	}
	var obligation *models.ReviewObligation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		obligation, err = s.reviews.RecordReview(ctx, tx, actor.UserID, lineItemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obligation, nil
}

func (s *service) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending orders")
	}
	return rows, nil
}

// bumpVersion writes updates guarded by the version read at the start of the
// transaction.
func (s *service) bumpVersion(ctx context.Context, r Repository, order *models.Order, updates map[string]any) error {
	affected, err := r.UpdateVersioned(ctx, order.ID, order.Version, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeConcurrentModification, "order was modified by another request").
			WithDetails(map[string]any{"order_id": order.ID.String(), "version": order.Version})
	}
	return nil
}

func (s *service) loadView(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, viewer enums.ActorRole) (*OrderView, error) {
	order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
	if err != nil {
		return nil, repo.Translate(err, "order")
	}
	return s.buildView(ctx, tx, order, viewer)
}

func (s *service) buildView(ctx context.Context, tx *gorm.DB, order *models.Order, viewer enums.ActorRole) (*OrderView, error) {
	refundRows, err := s.refunds.ListForOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	disputeRows, err := s.disputes.ListForOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	return buildOrderView(order, refundRows, disputeRows, viewer), nil
}

func validateActor(actor Actor) error {
	if !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
	if actor.UserID == uuid.Nil && actor.Role != enums.ActorRoleSystem {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

// authorize checks the actor's relationship to the order. Admin and system
// actors are not tied to an order; the transition table limits what they may do.
func authorize(order *models.Order, actor Actor) error {
	switch actor.Role {
	case enums.ActorRoleBuyer:
		if order.BuyerID != actor.UserID {
			return pkgerrors.NotParty("order does not belong to buyer")
		}
	case enums.ActorRoleDistributor:
		if order.DistributorID != actor.UserID {
			return pkgerrors.NotParty("order does not belong to distributor")
		}
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
	default:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor role")
	}
	return nil
}

func orderEvent(order *models.Order, eventType enums.OutboxEventType, actor *outbox.ActorRef, data any) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data:          data,
		Version:       1,
	}
}
