// Package registry is the catalog of order events the outbox carries: the
// topic each one is published to and how its payload decodes for a schema
// version. The publisher resolves rows through it and consumers decode with it.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
)

type destination uint8

const (
	toOrders destination = iota
	toNotifications
)

type schema struct {
	event   enums.OutboxEventType
	version int
}

type entry struct {
	to     destination
	decode func(json.RawMessage) (any, error)
}

var catalog = map[schema]entry{
	{enums.EventOrderTransitioned, 1}:     {toOrders, decodeAs[payloads.OrderTransitionedEvent]},
	{enums.EventOrderCompleted, 1}:        {toOrders, decodeAs[payloads.OrderCompletedEvent]},
	{enums.EventRefundRequested, 1}:       {toOrders, decodeAs[payloads.RefundRequestedEvent]},
	{enums.EventRefundResolved, 1}:        {toOrders, decodeAs[payloads.RefundResolvedEvent]},
	{enums.EventDisputeLodged, 1}:         {toOrders, decodeAs[payloads.DisputeLodgedEvent]},
	{enums.EventDisputeResolved, 1}:       {toOrders, decodeAs[payloads.DisputeResolvedEvent]},
	{enums.EventReviewPromptRequested, 1}: {toNotifications, decodeAs[payloads.ReviewPromptRequestedEvent]},
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decoders decodes consumer payloads through the catalog. Payloads come back
// as values, e.g. payloads.OrderCompletedEvent.
type Decoders struct{}

func NewPayloadDecoders() Decoders { return Decoders{} }

func (Decoders) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	e, ok := catalog[schema{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	return e.decode(data)
}

// EventDescriptor is where a resolved row is published.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row with its envelope and typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never publish. The publisher
// dead-letters it instead of counting another attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry resolves outbox rows against the configured topics.
type EventRegistry struct {
	topics [2]string
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	}
	return &EventRegistry{topics: [2]string{toOrders: cfg.OrdersTopic, toNotifications: cfg.NotificationTopic}}, nil
}

// Resolve decodes row. Every error it returns is a NonRetryableError: a row
// that fails here fails the same way on every attempt.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	if row.AggregateType != enums.AggregateOrder {
		return nil, nonRetryable("%s rows are not order events", row.AggregateType)
	}
	if row.AggregateID == uuid.Nil {
		return nil, nonRetryable("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	version := env.Version
	if version == 0 {
		version = 1
	}
	e, ok := catalog[schema{row.EventType, version}]
	if !ok {
		return nil, nonRetryable("unsupported event %s@v%d", row.EventType, version)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("%s has no payload", row.EventType)
	}
	payload, err := e.decode(env.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", row.EventType, err)
	}

	return &ResolvedEvent{
		Descriptor: EventDescriptor{
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			Topic:         r.topics[e.to],
		},
		Envelope: env,
		Payload:  payload,
	}, nil
}
