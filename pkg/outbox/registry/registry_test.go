package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic", NotificationTopic: "notification-topic"})
	require.NoError(t, err)
	return reg
}

func envelopeOf(t *testing.T, version int, data string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return raw
}

func orderRow(t *testing.T, eventType enums.OutboxEventType, data string) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopeOf(t, 1, data),
	}
}

func TestResolveRoutesByEventType(t *testing.T) {
	reg := newTestEventRegistry(t)
	lineItem := uuid.New()

	completed, err := reg.Resolve(orderRow(t, enums.EventOrderCompleted, `{"line_item_ids":["`+lineItem.String()+`"]}`))
	require.NoError(t, err)
	require.Equal(t, "orders-topic", completed.Descriptor.Topic)
	payload, ok := completed.Payload.(payloads.OrderCompletedEvent)
	require.True(t, ok, "got %T", completed.Payload)
	require.Equal(t, []uuid.UUID{lineItem}, payload.LineItemIDs)
	require.NotEmpty(t, completed.Envelope.EventID)

	prompt, err := reg.Resolve(orderRow(t, enums.EventReviewPromptRequested, `{"prompt_count":1}`))
	require.NoError(t, err)
	require.Equal(t, "notification-topic", prompt.Descriptor.Topic)
}

func TestResolveTreatsEnvelopeWithoutVersionAsV1(t *testing.T) {
	reg := newTestEventRegistry(t)
	row := orderRow(t, enums.EventDisputeLodged, `{"dispute_amount":"50"}`)
	row.Payload = envelopeOf(t, 0, `{"dispute_amount":"50"}`)

	_, err := reg.Resolve(row)
	require.NoError(t, err)
}

func TestResolveFailuresAreNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	notification := orderRow(t, enums.EventRefundRequested, `{}`)
	notification.AggregateType = enums.AggregateNotification
	noAggregate := orderRow(t, enums.EventOrderTransitioned, `{}`)
	noAggregate.AggregateID = uuid.Nil
	futureSchema := orderRow(t, enums.EventOrderCompleted, `{}`)
	futureSchema.Payload = envelopeOf(t, 2, `{}`)
	badEnvelope := orderRow(t, enums.EventOrderCompleted, `{}`)
	badEnvelope.Payload = json.RawMessage(`{"data":`)

	cases := map[string]models.OutboxEvent{
		"unknown event":     orderRow(t, enums.OutboxEventType("order_exploded"), `{}`),
		"wrong aggregate":   notification,
		"missing aggregate": noAggregate,
		"unknown version":   futureSchema,
		"null payload":      orderRow(t, enums.EventDisputeResolved, `null`),
		"malformed payload": orderRow(t, enums.EventDisputeLodged, `{"dispute_amount":true}`),
		"broken envelope":   badEnvelope,
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			var nonRetry NonRetryableError
			require.True(t, errors.As(err, &nonRetry), "got %v", err)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "n"})
	require.Error(t, err)
	_, err = NewEventRegistry(config.PubSubConfig{OrdersTopic: "o"})
	require.Error(t, err)
}

func TestDecodersShareTheCatalog(t *testing.T) {
	decoders := NewPayloadDecoders()

	out, err := decoders.Decode(enums.EventRefundResolved, 1, json.RawMessage(`{"status":"rejected","amount":"50"}`))
	require.NoError(t, err)
	resolved, ok := out.(payloads.RefundResolvedEvent)
	require.True(t, ok, "got %T", out)
	require.Equal(t, enums.RefundStatusRejected, resolved.Status)
	require.Equal(t, "50", resolved.Amount.String())

	_, err = decoders.Decode(enums.EventOrderCompleted, 2, json.RawMessage(`{}`))
	require.Error(t, err)
	_, err = decoders.Decode(enums.EventDisputeLodged, 1, json.RawMessage(`{"dispute_amount":`))
	require.Error(t, err)
}
