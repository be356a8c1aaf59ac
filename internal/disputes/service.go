package disputes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/internal/repo"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
)

// RefundDisputeIndex is the unique index allowing one dispute per refund.
const RefundDisputeIndex = "ux_disputes_refund"

type refundReader interface {
	Get(ctx context.Context, tx *gorm.DB, refundID uuid.UUID) (*models.RefundRequest, error)
}

// LodgeInput is what a buyer submits when escalating a rejected refund.
type LodgeInput struct {
	RefundID uuid.UUID
	Details  string
	// Amount overrides the default of the full order total.
	Amount *decimal.Decimal
}

// Resolution records an administrator's terminal verdict.
type Resolution struct {
	Status        enums.DisputeStatus
	ResultDetails string
	ActorID       uuid.UUID
}

// Service gates dispute creation on refund state and records resolutions.
type Service interface {
	Lodge(ctx context.Context, tx *gorm.DB, order *models.Order, input LodgeInput, buyerID uuid.UUID) (*models.Dispute, *models.RefundRequest, error)
	Get(ctx context.Context, tx *gorm.DB, disputeID uuid.UUID) (*models.Dispute, error)
	Resolve(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, res Resolution) (*models.Dispute, error)
	ListForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.Dispute, error)
}

type service struct {
	repo    Repository
	refunds refundReader
	now     func() time.Time
}

// NewService builds the dispute service.
func NewService(repo Repository, refunds refundReader, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if refunds == nil {
		return nil, fmt.Errorf("refund reader required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, refunds: refunds, now: now}, nil
}

func (s *service) Lodge(ctx context.Context, tx *gorm.DB, order *models.Order, input LodgeInput, buyerID uuid.UUID) (*models.Dispute, *models.RefundRequest, error) {
	if input.RefundID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	if buyerID != order.BuyerID {
		return nil, nil, pkgerrors.NotParty("only the buyer may lodge a dispute")
	}
	details := strings.TrimSpace(input.Details)
	if details == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute details required")
	}

	refund, err := s.refunds.Get(ctx, tx, input.RefundID)
	if err != nil {
		return nil, nil, err
	}
	if refund.OrderID != order.ID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	if refund.Status != enums.RefundStatusRejected {
		return nil, nil, pkgerrors.New(pkgerrors.CodeRefundNotRejected, fmt.Sprintf("refund is %s", refund.Status)).
			WithDetails(map[string]string{"refund_status": string(refund.Status)})
	}

	amount := order.OrderTotal
	if input.Amount != nil {
		if !input.Amount.IsPositive() || input.Amount.GreaterThan(order.OrderTotal) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute amount must be positive and at most the order total")
		}
		amount = input.Amount.Round(2)
	}

	r := s.repo.WithTx(tx)
	existing, err := r.FindByRefund(ctx, refund.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing dispute")
	}
	if existing != nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDisputeAlreadyExists, "a dispute already exists for this refund").
			WithDetails(map[string]string{"dispute_id": existing.ID.String()})
	}

	dispute := &models.Dispute{
		OrderID:        order.ID,
		RefundID:       refund.ID,
		LodgedBy:       buyerID,
		Status:         enums.DisputeStatusPending,
		DisputeAmount:  amount,
		DisputeDetails: details,
	}
	if err := r.Create(ctx, dispute); err != nil {
		if db.IsUniqueViolation(err, RefundDisputeIndex) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeDisputeAlreadyExists, "a dispute already exists for this refund")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
	}
	return dispute, refund, nil
}

func (s *service) Get(ctx context.Context, tx *gorm.DB, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.WithTx(tx).FindByID(ctx, disputeID)
	if err != nil {
		return nil, repo.Translate(err, "dispute")
	}
	return dispute, nil
}

// Resolve stores the terminal status and result text. Financial outcomes are
// decided elsewhere.
func (s *service) Resolve(ctx context.Context, tx *gorm.DB, dispute *models.Dispute, res Resolution) (*models.Dispute, error) {
	if !res.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid dispute outcome %q", res.Status))
	}
	details := strings.TrimSpace(res.ResultDetails)
	if details == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute result details required")
	}
	if res.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if dispute.Status != enums.DisputeStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("dispute already %s", dispute.Status)).
			WithDetails(map[string]string{"dispute_status": string(dispute.Status)})
	}

	now := s.now().UTC()
	affected, err := s.repo.WithTx(tx).MarkResolved(ctx, dispute.ID, res.Status, res.ActorID, details, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConcurrentModification, "dispute was resolved concurrently")
	}

	resolved := *dispute
	resolved.Status = res.Status
	resolved.DisputeResultDetails = &details
	resolved.ResolvedBy = &res.ActorID
	resolved.ResolvedAt = &now
	resolved.UpdatedAt = now
	return &resolved, nil
}

func (s *service) ListForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.Dispute, error) {
	disputes, err := s.repo.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return disputes, nil
}
