package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// Service defines operations that record ledger events.
type Service interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLedgerEventInput) (*models.LedgerEvent, error)
	RefundedTotal(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (decimal.Decimal, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
}

type service struct {
	repo Repository
}

// RecordLedgerEventInput captures the immutable data a ledger event requires.
type RecordLedgerEventInput struct {
	OrderID       uuid.UUID             `json:"order_id"`
	BuyerID       uuid.UUID             `json:"buyer_id"`
	DistributorID uuid.UUID             `json:"distributor_id"`
	ActorUserID   uuid.UUID             `json:"actor_user_id"`
	Type          enums.LedgerEventType `json:"type"`
	Amount        decimal.Decimal       `json:"amount"`
	Metadata      json.RawMessage       `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordEvent(ctx context.Context, tx *gorm.DB, input RecordLedgerEventInput) (*models.LedgerEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("buyer id is required")
	}
	if input.DistributorID == uuid.Nil {
		return nil, fmt.Errorf("distributor id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("ledger amount must not be negative")
	}

	event := &models.LedgerEvent{
		OrderID:       input.OrderID,
		BuyerID:       input.BuyerID,
		DistributorID: input.DistributorID,
		ActorUserID:   input.ActorUserID,
		Type:          input.Type,
		AmountCents:   ToCents(input.Amount),
		Metadata:      input.Metadata,
	}

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// RefundedTotal sums the refund entries booked against an order.
func (s *service) RefundedTotal(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (decimal.Decimal, error) {
	if orderID == uuid.Nil {
		return decimal.Zero, fmt.Errorf("order id is required")
	}
	cents, err := s.repo.WithTx(tx).SumByType(ctx, orderID, enums.LedgerEventTypeRefund)
	if err != nil {
		return decimal.Zero, err
	}
	return FromCents(cents), nil
}

func (s *service) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

// ToCents converts a two-decimal money amount into integer cents.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents back into a money amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
