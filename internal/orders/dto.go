package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// Actor identifies who is asking for a change.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// ApplyActionInput is the single request shape accepted by ApplyAction.
type ApplyActionInput struct {
	OrderID uuid.UUID
	Action  enums.OrderAction
	Actor   Actor
	Payload ActionPayload
}

// ActionPayload carries action specific data. Only the field matching the
// action is read.
type ActionPayload struct {
	TrackingNumber string
	CancelReason   string
	Refund         *RefundPayload
	Dispute        *DisputePayload
}

// RefundPayload is the body of a request_refund action.
type RefundPayload struct {
	LineItemIDs []uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	Category    enums.RefundCategory
}

// DisputePayload is the body of a lodge_dispute action.
type DisputePayload struct {
	RefundID uuid.UUID
	Details  string
	Amount   *decimal.Decimal
}

// ResolveRefundInput approves or rejects a pending refund.
type ResolveRefundInput struct {
	RefundID uuid.UUID
	Decision enums.RefundStatus
	Note     *string
	Actor    Actor
}

// ResolveDisputeInput closes a pending dispute.
type ResolveDisputeInput struct {
	DisputeID     uuid.UUID
	Status        enums.DisputeStatus
	ResultDetails string
	Actor         Actor
}

// CreateOrderInput is what checkout hands over when an order is placed.
type CreateOrderInput struct {
	BuyerID        uuid.UUID
	DistributorID  uuid.UUID
	DeliveryMethod enums.DeliveryMethod
	Items          []CreateLineItemInput
}

// CreateLineItemInput describes one purchased product.
type CreateLineItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineItemView is the read model of an order line item.
type LineItemView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Position  int             `json:"position"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Reviewed  bool            `json:"reviewed"`
}

// RefundView summarises a refund request.
type RefundView struct {
	ID             uuid.UUID            `json:"id"`
	Status         enums.RefundStatus   `json:"status"`
	Amount         decimal.Decimal      `json:"amount"`
	Reason         string               `json:"reason"`
	ReasonCategory enums.RefundCategory `json:"reason_category"`
	LineItemIDs    []uuid.UUID          `json:"line_item_ids,omitempty"`
	ResolutionNote *string              `json:"resolution_note,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ResolvedAt     *time.Time           `json:"resolved_at,omitempty"`
}

// DisputeView summarises a dispute.
type DisputeView struct {
	ID                   uuid.UUID           `json:"id"`
	RefundID             uuid.UUID           `json:"refund_id"`
	Status               enums.DisputeStatus `json:"status"`
	DisputeAmount        decimal.Decimal     `json:"dispute_amount"`
	DisputeDetails       string              `json:"dispute_details"`
	DisputeResultDetails *string             `json:"dispute_result_details,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	ResolvedAt           *time.Time          `json:"resolved_at,omitempty"`
}

// OrderView is the authoritative order returned after every call.
type OrderView struct {
	ID               uuid.UUID            `json:"id"`
	BuyerID          uuid.UUID            `json:"buyer_id"`
	DistributorID    uuid.UUID            `json:"distributor_id"`
	Status           enums.OrderStatus    `json:"status"`
	RefundRejected   bool                 `json:"refund_rejected"`
	DeliveryMethod   enums.DeliveryMethod `json:"delivery_method"`
	OrderTotal       decimal.Decimal      `json:"order_total"`
	TrackingNumber   *string              `json:"tracking_number,omitempty"`
	CancelReason     *string              `json:"cancel_reason,omitempty"`
	Version          int64                `json:"version"`
	Items            []LineItemView       `json:"items"`
	Refunds          []RefundView         `json:"refunds"`
	Disputes         []DisputeView        `json:"disputes"`
	AvailableActions []enums.OrderAction  `json:"available_actions"`
	AcceptedAt       *time.Time           `json:"accepted_at,omitempty"`
	ShippedAt        *time.Time           `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time           `json:"delivered_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CanceledAt       *time.Time           `json:"canceled_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

func buildOrderView(order *models.Order, refunds []models.RefundRequest, disputes []models.Dispute, viewer enums.ActorRole) *OrderView {
	view := &OrderView{
		ID:             order.ID,
		BuyerID:        order.BuyerID,
		DistributorID:  order.DistributorID,
		Status:         order.Status,
		DeliveryMethod: order.DeliveryMethod,
		OrderTotal:     order.OrderTotal,
		TrackingNumber: order.TrackingNumber,
		CancelReason:   order.CancelReason,
		Version:        order.Version,
		Items:          make([]LineItemView, 0, len(order.Items)),
		Refunds:        make([]RefundView, 0, len(refunds)),
		Disputes:       make([]DisputeView, 0, len(disputes)),
		AcceptedAt:     order.AcceptedAt,
		ShippedAt:      order.ShippedAt,
		DeliveredAt:    order.DeliveredAt,
		CompletedAt:    order.CompletedAt,
		CanceledAt:     order.CanceledAt,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, LineItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Position:  item.Position,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
			Reviewed:  item.Reviewed,
		})
	}
	for _, refund := range refunds {
		view.Refunds = append(view.Refunds, RefundView{
			ID:             refund.ID,
			Status:         refund.Status,
			Amount:         refund.Amount,
			Reason:         refund.Reason,
			ReasonCategory: refund.ReasonCategory,
			LineItemIDs:    []uuid.UUID(refund.LineItemIDs),
			ResolutionNote: refund.ResolutionNote,
			CreatedAt:      refund.CreatedAt,
			ResolvedAt:     refund.ResolvedAt,
		})
	}
	if n := len(refunds); n > 0 {
		view.RefundRejected = order.Status == enums.OrderStatusDelivered && refunds[n-1].Status == enums.RefundStatusRejected
	}
	for _, dispute := range disputes {
		view.Disputes = append(view.Disputes, DisputeView{
			ID:                   dispute.ID,
			RefundID:             dispute.RefundID,
			Status:               dispute.Status,
			DisputeAmount:        dispute.DisputeAmount,
			DisputeDetails:       dispute.DisputeDetails,
			DisputeResultDetails: dispute.DisputeResultDetails,
			CreatedAt:            dispute.CreatedAt,
			ResolvedAt:           dispute.ResolvedAt,
		})
	}
	view.AvailableActions = AvailableActions(order.Status, viewer, transitionContext(order, ""))
	if view.AvailableActions == nil {
		view.AvailableActions = []enums.OrderAction{}
	}
	return view
}

func transitionContext(order *models.Order, tracking string) TransitionContext {
	return TransitionContext{
		DeliveryMethod: order.DeliveryMethod,
		TrackingNumber: tracking,
	}
}
