package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// OrderTransitionedEvent is emitted for every accepted order state change.
type OrderTransitionedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	DistributorID  uuid.UUID         `json:"distributor_id"`
	Action         enums.OrderAction `json:"action"`
	FromStatus     enums.OrderStatus `json:"from_status"`
	ToStatus       enums.OrderStatus `json:"to_status"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	Version        int64             `json:"version"`
}

// OrderCompletedEvent carries the line items whose review obligations were activated.
type OrderCompletedEvent struct {
	OrderID       uuid.UUID   `json:"order_id"`
	BuyerID       uuid.UUID   `json:"buyer_id"`
	DistributorID uuid.UUID   `json:"distributor_id"`
	LineItemIDs   []uuid.UUID `json:"line_item_ids"`
	CompletedAt   time.Time   `json:"completed_at"`
}

type RefundRequestedEvent struct {
	RefundID      uuid.UUID            `json:"refund_id"`
	OrderID       uuid.UUID            `json:"order_id"`
	BuyerID       uuid.UUID            `json:"buyer_id"`
	DistributorID uuid.UUID            `json:"distributor_id"`
	Amount        decimal.Decimal      `json:"amount"`
	Category      enums.RefundCategory `json:"category"`
}

type RefundResolvedEvent struct {
	RefundID      uuid.UUID          `json:"refund_id"`
	OrderID       uuid.UUID          `json:"order_id"`
	BuyerID       uuid.UUID          `json:"buyer_id"`
	DistributorID uuid.UUID          `json:"distributor_id"`
	Status        enums.RefundStatus `json:"status"`
	Amount        decimal.Decimal    `json:"amount"`
	Note          *string            `json:"note,omitempty"`
}

type DisputeLodgedEvent struct {
	DisputeID     uuid.UUID       `json:"dispute_id"`
	RefundID      uuid.UUID       `json:"refund_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	DistributorID uuid.UUID       `json:"distributor_id"`
	DisputeAmount decimal.Decimal `json:"dispute_amount"`
}

type DisputeResolvedEvent struct {
	DisputeID     uuid.UUID           `json:"dispute_id"`
	RefundID      uuid.UUID           `json:"refund_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	DistributorID uuid.UUID           `json:"distributor_id"`
	Status        enums.DisputeStatus `json:"status"`
	ResultDetails string              `json:"result_details"`
}

// ReviewPromptRequestedEvent asks the notification collaborator to nudge a buyer about an unreviewed item.
type ReviewPromptRequestedEvent struct {
	OrderLineItemID uuid.UUID `json:"order_line_item_id"`
	OrderID         uuid.UUID `json:"order_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	ProductID       uuid.UUID `json:"product_id"`
	PromptCount     int       `json:"prompt_count"`
}
