package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderTransitioned     OutboxEventType = "order_transitioned"
	EventOrderCompleted        OutboxEventType = "order_completed"
	EventRefundRequested       OutboxEventType = "refund_requested"
	EventRefundResolved        OutboxEventType = "refund_resolved"
	EventDisputeLodged         OutboxEventType = "dispute_lodged"
	EventDisputeResolved       OutboxEventType = "dispute_resolved"
	EventReviewPromptRequested OutboxEventType = "review_prompt_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderTransitioned,
	EventOrderCompleted,
	EventRefundRequested,
	EventRefundResolved,
	EventDisputeLodged,
	EventDisputeResolved,
	EventReviewPromptRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}
