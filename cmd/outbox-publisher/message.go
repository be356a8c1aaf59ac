package main

import (
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/registry"
)

// orderRef is the order an event belongs to and its two parties.
type orderRef struct {
	OrderID       uuid.UUID
	BuyerID       uuid.UUID
	DistributorID uuid.UUID
}

func orderRefOf(payload any) (orderRef, bool) {
	switch p := payload.(type) {
	case payloads.OrderTransitionedEvent:
		return orderRef{p.OrderID, p.BuyerID, p.DistributorID}, true
	case payloads.OrderCompletedEvent:
		return orderRef{p.OrderID, p.BuyerID, p.DistributorID}, true
	case payloads.RefundRequestedEvent:
		return orderRef{p.OrderID, p.BuyerID, p.DistributorID}, true
	case payloads.RefundResolvedEvent:
		return orderRef{p.OrderID, p.BuyerID, p.DistributorID}, true
	case payloads.DisputeLodgedEvent:
		return orderRef{p.OrderID, p.BuyerID, p.DistributorID}, true
	case payloads.DisputeResolvedEvent:
		return orderRef{p.OrderID, p.BuyerID, p.DistributorID}, true
	case payloads.ReviewPromptRequestedEvent:
		return orderRef{OrderID: p.OrderID, BuyerID: p.BuyerID}, true
	}
	return orderRef{}, false
}

// orderingKey groups every event of one order so subscribers see them in
// commit order. Rows without an order in their payload fall back to the
// aggregate id.
func orderingKey(event models.OutboxEvent, resolved *registry.ResolvedEvent) string {
	if ref, ok := orderRefOf(resolved.Payload); ok && ref.OrderID != uuid.Nil {
		return ref.OrderID.String()
	}
	return event.AggregateID.String()
}

func buildMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"schema_version": strconv.Itoa(resolved.Envelope.Version),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if ref, ok := orderRefOf(resolved.Payload); ok {
		setID(attrs, "order_id", ref.OrderID)
		setID(attrs, "buyer_id", ref.BuyerID)
		setID(attrs, "distributor_id", ref.DistributorID)
	}
	if resolved.Envelope.Actor != nil && resolved.Envelope.Actor.Role != "" {
		attrs["actor_role"] = resolved.Envelope.Actor.Role
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: orderingKey(event, resolved),
	}
}

func setID(attrs map[string]string, name string, id uuid.UUID) {
	if id != uuid.Nil {
		attrs[name] = id.String()
	}
}
