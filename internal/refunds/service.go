package refunds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/internal/ledger"
	"github.com/angelmondragon/packfinderz-orderflow/internal/repo"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	dbtypes "github.com/angelmondragon/packfinderz-orderflow/pkg/db/types"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
)

// PendingRefundIndex is the partial unique index allowing one pending refund per order.
const PendingRefundIndex = "ux_refund_requests_pending_order"

type refundLedger interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input ledger.RecordLedgerEventInput) (*models.LedgerEvent, error)
	RefundedTotal(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (decimal.Decimal, error)
}

// RequestInput is the buyer-supplied part of a refund request.
type RequestInput struct {
	LineItemIDs []uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	Category    enums.RefundCategory
}

// Resolution is an approve/reject decision taken by a distributor or admin.
type Resolution struct {
	Decision enums.RefundStatus
	Note     *string
	ActorID  uuid.UUID
}

// Service owns refund request rules. Every mutating call runs inside the
// caller's transaction so order state and refund rows commit together.
type Service interface {
	CheckWindow(order *models.Order) error
	Remaining(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error)
	Request(ctx context.Context, tx *gorm.DB, order *models.Order, input RequestInput, buyerID uuid.UUID) (*models.RefundRequest, error)
	Get(ctx context.Context, tx *gorm.DB, refundID uuid.UUID) (*models.RefundRequest, error)
	Resolve(ctx context.Context, tx *gorm.DB, order *models.Order, refund *models.RefundRequest, res Resolution) (*models.RefundRequest, error)
	ListForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.RefundRequest, error)
}

type service struct {
	repo   Repository
	ledger refundLedger
	now    func() time.Time
}

// NewService builds the refund service.
func NewService(repo Repository, ledger refundLedger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, ledger: ledger, now: now}, nil
}

// CheckWindow reports whether the order currently accepts refund requests.
func (s *service) CheckWindow(order *models.Order) error {
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeRefundWindowClosed, fmt.Sprintf("refunds are only accepted for delivered orders (status %s)", order.Status))
	}
	return nil
}

// Remaining is the order total less refunds already approved.
func (s *service) Remaining(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	refunded, err := s.ledger.RefundedTotal(ctx, tx, order.ID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum approved refunds")
	}
	remaining := order.OrderTotal.Sub(refunded)
	if remaining.IsNegative() {
		return decimal.Zero, nil
	}
	return remaining, nil
}

func (s *service) Request(ctx context.Context, tx *gorm.DB, order *models.Order, input RequestInput, buyerID uuid.UUID) (*models.RefundRequest, error) {
	if err := s.CheckWindow(order); err != nil {
		return nil, err
	}
	if buyerID != order.BuyerID {
		return nil, pkgerrors.NotParty("only the buyer may request a refund")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	category := input.Category
	if category == "" {
		category = enums.RefundCategoryOther
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid refund category %q", input.Category))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if err := validateLineItems(order, input.LineItemIDs); err != nil {
		return nil, err
	}

	remaining, err := s.Remaining(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if input.Amount.GreaterThan(remaining) {
		return nil, pkgerrors.New(pkgerrors.CodeRefundAmountInvalid, "refund amount exceeds refundable total").
			WithDetails(map[string]string{
				"amount":     input.Amount.StringFixed(2),
				"refundable": remaining.StringFixed(2),
			})
	}

	r := s.repo.WithTx(tx)
	pending, err := r.FindPendingByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending refunds")
	}
	if pending != nil {
		return nil, alreadyPending(pending.ID)
	}

	refund := &models.RefundRequest{
		OrderID:        order.ID,
		RequestedBy:    buyerID,
		LineItemIDs:    dbtypes.UUIDList(input.LineItemIDs),
		Amount:         input.Amount.Round(2),
		Reason:         reason,
		ReasonCategory: category,
		Status:         enums.RefundStatusPending,
	}
	if err := r.Create(ctx, refund); err != nil {
		if db.IsUniqueViolation(err, PendingRefundIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeRefundAlreadyPending, "a refund is already pending for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
	}
	return refund, nil
}

func (s *service) Get(ctx context.Context, tx *gorm.DB, refundID uuid.UUID) (*models.RefundRequest, error) {
	refund, err := s.repo.WithTx(tx).FindByID(ctx, refundID)
	if err != nil {
		return nil, repo.Translate(err, "refund")
	}
	return refund, nil
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, order *models.Order, refund *models.RefundRequest, res Resolution) (*models.RefundRequest, error) {
	if res.Decision != enums.RefundStatusApproved && res.Decision != enums.RefundStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid refund decision %q", res.Decision))
	}
	if res.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if refund.OrderID != order.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	if refund.Status != enums.RefundStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("refund already %s", refund.Status)).
			WithDetails(map[string]string{"refund_status": string(refund.Status)})
	}

	now := s.now().UTC()
	affected, err := s.repo.WithTx(tx).MarkResolved(ctx, refund.ID, res.Decision, res.ActorID, res.Note, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve refund")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrentModification, "refund was resolved concurrently")
	}

	if res.Decision == enums.RefundStatusApproved {
		metadata, err := json.Marshal(map[string]string{"refund_id": refund.ID.String()})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ledger metadata")
		}
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordLedgerEventInput{
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			DistributorID: order.DistributorID,
			ActorUserID:   res.ActorID,
			Type:          enums.LedgerEventTypeRefund,
			Amount:        refund.Amount,
			Metadata:      metadata,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund ledger entry")
		}
	}

	resolved := *refund
	resolved.Status = res.Decision
	resolved.ResolvedBy = &res.ActorID
	resolved.ResolutionNote = res.Note
	resolved.ResolvedAt = &now
	resolved.UpdatedAt = now
	return &resolved, nil
}

func (s *service) ListForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.RefundRequest, error) {
	refunds, err := s.repo.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return refunds, nil
}

func validateLineItems(order *models.Order, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	owned := make(map[uuid.UUID]struct{}, len(order.Items))
	for _, item := range order.Items {
		owned[item.ID] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %s does not belong to order", id))
		}
		if _, dup := seen[id]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line item %s listed twice", id))
		}
		seen[id] = struct{}{}
	}
	return nil
}

func alreadyPending(refundID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeRefundAlreadyPending, "a refund is already pending for this order").
		WithDetails(map[string]string{"refund_id": refundID.String()})
}
