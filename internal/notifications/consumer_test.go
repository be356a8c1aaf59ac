package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/registry"
)

type recordingRepo struct {
	created []models.Notification
	err     error
}

func (r *recordingRepo) CreateMany(_ context.Context, notifications []models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, notifications...)
	return nil
}

type memoryProcessed struct {
	seen      map[string]bool
	deleted   []uuid.UUID
	err       error
	deleteErr error
}

func (m *memoryProcessed) Claim(_ context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	key := consumer + ":" + eventID.String()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryProcessed) Release(_ context.Context, consumer string, eventID uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.seen, consumer+":"+eventID.String())
	m.deleted = append(m.deleted, eventID)
	return nil
}

type noopReceiver struct{}

func (noopReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

func newTestConsumer(t *testing.T, repo *recordingRepo, processed *memoryProcessed) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(ConsumerParams{
		Name:         "order-notifications",
		Repository:   repo,
		Subscription: noopReceiver{},
		Dedup:        processed,
		Decoders:     registry.NewPayloadDecoders(),
		Logger:       logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return consumer
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(ConsumerParams{Name: "x"})
	require.Error(t, err)
}

func TestConsumerNotifiesBuyerOnShipment(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &memoryProcessed{})
	buyerID := uuid.New()
	tracking := "TRK-9"

	result := consumer.process(context.Background(), eventMessage(t, enums.EventOrderTransitioned, uuid.New(), payloads.OrderTransitionedEvent{
		OrderID:        uuid.New(),
		BuyerID:        buyerID,
		DistributorID:  uuid.New(),
		Action:         enums.OrderActionShip,
		FromStatus:     enums.OrderStatusAccepted,
		ToStatus:       enums.OrderStatusShipped,
		TrackingNumber: &tracking,
		Version:        3,
	}))

	require.True(t, result.ack)
	require.Len(t, repo.created, 1)
	require.Equal(t, buyerID, repo.created[0].UserID)
	require.Equal(t, enums.NotificationTypeOrderAlert, repo.created[0].Type)
	require.Contains(t, repo.created[0].Message, "TRK-9")
}

func TestConsumerDisputeResolutionReachesBothParties(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &memoryProcessed{})
	buyerID, distributorID := uuid.New(), uuid.New()

	result := consumer.process(context.Background(), eventMessage(t, enums.EventDisputeResolved, uuid.New(), payloads.DisputeResolvedEvent{
		DisputeID:     uuid.New(),
		RefundID:      uuid.New(),
		OrderID:       uuid.New(),
		BuyerID:       buyerID,
		DistributorID: distributorID,
		Status:        enums.DisputeStatusResolved,
		ResultDetails: "partial credit issued",
	}))

	require.True(t, result.ack)
	require.Len(t, repo.created, 2)
	require.ElementsMatch(t, []uuid.UUID{buyerID, distributorID}, []uuid.UUID{repo.created[0].UserID, repo.created[1].UserID})
}

func TestConsumerReviewPromptTargetsLineItem(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &memoryProcessed{})
	lineItemID := uuid.New()

	consumer.process(context.Background(), eventMessage(t, enums.EventReviewPromptRequested, uuid.New(), payloads.ReviewPromptRequestedEvent{
		OrderLineItemID: lineItemID,
		OrderID:         uuid.New(),
		BuyerID:         uuid.New(),
		ProductID:       uuid.New(),
		PromptCount:     1,
	}))

	require.Len(t, repo.created, 1)
	require.Equal(t, enums.NotificationTypeReviewPrompt, repo.created[0].Type)
	require.NotNil(t, repo.created[0].Link)
	require.Contains(t, *repo.created[0].Link, lineItemID.String())
}

func TestConsumerSkipsDuplicateDelivery(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &memoryProcessed{})
	msg := eventMessage(t, enums.EventRefundRequested, uuid.New(), payloads.RefundRequestedEvent{
		RefundID:      uuid.New(),
		OrderID:       uuid.New(),
		BuyerID:       uuid.New(),
		DistributorID: uuid.New(),
		Amount:        decimal.NewFromInt(50),
		Category:      enums.RefundCategoryDamaged,
	})

	require.True(t, consumer.process(context.Background(), msg).ack)
	require.True(t, consumer.process(context.Background(), msg).ack)
	require.Len(t, repo.created, 1)
}

func TestConsumerNacksAndReleasesOnWriteFailure(t *testing.T) {
	repo := &recordingRepo{err: errors.New("db down")}
	processed := &memoryProcessed{}
	consumer := newTestConsumer(t, repo, processed)
	eventID := uuid.New()

	result := consumer.process(context.Background(), eventMessage(t, enums.EventOrderCompleted, eventID, payloads.OrderCompletedEvent{
		OrderID: uuid.New(),
		BuyerID: uuid.New(),
	}))

	require.True(t, result.nack)
	require.Equal(t, []uuid.UUID{eventID}, processed.deleted)
}

func TestConsumerLogsFailedMarkerRelease(t *testing.T) {
	var logs bytes.Buffer
	consumer, err := NewConsumer(ConsumerParams{
		Name:         "order-notifications",
		Repository:   &recordingRepo{err: errors.New("db down")},
		Subscription: noopReceiver{},
		Dedup:        &memoryProcessed{deleteErr: errors.New("redis timeout")},
		Decoders:     registry.NewPayloadDecoders(),
		Logger:       logger.New(logger.Options{ServiceName: "notifications-test", Output: &logs}),
	})
	require.NoError(t, err)

	result := consumer.process(context.Background(), eventMessage(t, enums.EventOrderCompleted, uuid.New(), payloads.OrderCompletedEvent{
		OrderID: uuid.New(),
		BuyerID: uuid.New(),
	}))

	require.True(t, result.nack)
	require.Contains(t, logs.String(), "release idempotency marker failed")
	require.Contains(t, logs.String(), "redis timeout")
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	consumer := newTestConsumer(t, &recordingRepo{}, &memoryProcessed{err: errors.New("redis down")})

	result := consumer.process(context.Background(), eventMessage(t, enums.EventOrderCompleted, uuid.New(), payloads.OrderCompletedEvent{}))
	require.True(t, result.nack)
}

func TestConsumerAcksUnknownAndMalformedMessages(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &memoryProcessed{})

	unknown := &pubsub.Message{ID: "1", Data: []byte(`{}`), Attributes: map[string]string{"event_type": "order_created"}}
	require.True(t, consumer.process(context.Background(), unknown).ack)

	malformed := &pubsub.Message{ID: "2", Data: []byte(`not-json`), Attributes: map[string]string{"event_type": string(enums.EventOrderCompleted)}}
	require.True(t, consumer.process(context.Background(), malformed).ack)

	require.Empty(t, repo.created)
}

func TestConsumerIgnoresUninterestingTransitions(t *testing.T) {
	repo := &recordingRepo{}
	consumer := newTestConsumer(t, repo, &memoryProcessed{})

	result := consumer.process(context.Background(), eventMessage(t, enums.EventOrderTransitioned, uuid.New(), payloads.OrderTransitionedEvent{
		OrderID:    uuid.New(),
		FromStatus: enums.OrderStatusDelivered,
		ToStatus:   enums.OrderStatusCompleted,
	}))

	require.True(t, result.ack)
	require.Empty(t, repo.created)
}
