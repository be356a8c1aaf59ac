package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type repository interface {
	CreateMany(ctx context.Context, notifications []models.Notification) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type eventDedup interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

// ConsumerParams wires a notification consumer to one subscription.
type ConsumerParams struct {
	Name         string
	Repository   repository
	Subscription receiver
	Dedup        eventDedup
	Decoders     payloadDecoder
	Logger       *logger.Logger
}

// Consumer turns order lifecycle events into in-app notifications for the
// buyer and distributor involved.
type Consumer struct {
	name         string
	repo         repository
	subscription receiver
	dedup        eventDedup
	decoders     payloadDecoder
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("consumer name required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("subscription required")
	}
	if params.Dedup == nil {
		return nil, fmt.Errorf("event dedup required")
	}
	if params.Decoders == nil {
		return nil, fmt.Errorf("payload decoders required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		name:         params.Name,
		repo:         params.Repository,
		subscription: params.Subscription,
		dedup:        params.Dedup,
		decoders:     params.Decoders,
		logg:         params.Logger,
	}, nil
}

// Name identifies the consumer in logs and idempotency keys.
func (c *Consumer) Name() string {
	return c.name
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	version := envelope.Version
	if version == 0 {
		version = 1
	}
	decoded, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	first, err := c.dedup.Claim(ctx, c.name, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !first {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notifications := notificationsFor(decoded)
	if len(notifications) == 0 {
		c.logg.Debug(logCtx, "event produces no notifications")
		return processResult{ack: true}
	}

	if err := c.repo.CreateMany(ctx, notifications); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if delErr := c.dedup.Release(ctx, c.name, eventID); delErr != nil {
			// The redelivery will be skipped as a duplicate until the marker expires.
			c.logg.Error(logCtx, "release idempotency marker failed", delErr)
		}
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "recipients", len(notifications)), "notifications created")
	return processResult{ack: true}
}

func notificationsFor(decoded interface{}) []models.Notification {
	switch event := decoded.(type) {
	case payloads.OrderTransitionedEvent:
		return transitionNotifications(event)
	case payloads.OrderCompletedEvent:
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeOrderAlert,
				"Order completed",
				fmt.Sprintf("Order %s is complete. Let us know how the items worked out.", event.OrderID),
				orderLink(event.OrderID)),
		}
	case payloads.RefundRequestedEvent:
		return []models.Notification{
			newNotification(event.DistributorID, enums.NotificationTypeRefundUpdate,
				"Refund requested",
				fmt.Sprintf("A refund of %s was requested on order %s (%s).", event.Amount.StringFixed(2), event.OrderID, event.Category),
				orderLink(event.OrderID)),
		}
	case payloads.RefundResolvedEvent:
		title := "Refund approved"
		message := fmt.Sprintf("Your refund of %s on order %s was approved.", event.Amount.StringFixed(2), event.OrderID)
		if event.Status == enums.RefundStatusRejected {
			title = "Refund rejected"
			message = fmt.Sprintf("Your refund on order %s was rejected. You can open a dispute.", event.OrderID)
			if event.Note != nil && *event.Note != "" {
				message = fmt.Sprintf("Your refund on order %s was rejected: %s", event.OrderID, *event.Note)
			}
		}
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeRefundUpdate, title, message, orderLink(event.OrderID)),
		}
	case payloads.DisputeLodgedEvent:
		return []models.Notification{
			newNotification(event.DistributorID, enums.NotificationTypeDisputeUpdate,
				"Dispute opened",
				fmt.Sprintf("The buyer disputed a rejected refund of %s on order %s.", event.DisputeAmount.StringFixed(2), event.OrderID),
				orderLink(event.OrderID)),
		}
	case payloads.DisputeResolvedEvent:
		message := fmt.Sprintf("The dispute on order %s was resolved: %s", event.OrderID, event.ResultDetails)
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeDisputeUpdate, "Dispute resolved", message, orderLink(event.OrderID)),
			newNotification(event.DistributorID, enums.NotificationTypeDisputeUpdate, "Dispute resolved", message, orderLink(event.OrderID)),
		}
	case payloads.ReviewPromptRequestedEvent:
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeReviewPrompt,
				"How was your order?",
				fmt.Sprintf("You have an item from order %s waiting for a review.", event.OrderID),
				fmt.Sprintf("/orders/%s/items/%s/review", event.OrderID, event.OrderLineItemID)),
		}
	default:
		return nil
	}
}

func transitionNotifications(event payloads.OrderTransitionedEvent) []models.Notification {
	link := orderLink(event.OrderID)
	switch event.ToStatus {
	case enums.OrderStatusAccepted:
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeOrderAlert, "Order accepted",
				fmt.Sprintf("Order %s was accepted by the distributor.", event.OrderID), link),
		}
	case enums.OrderStatusShipped:
		message := fmt.Sprintf("Order %s has shipped.", event.OrderID)
		if event.TrackingNumber != nil {
			message = fmt.Sprintf("Order %s has shipped. Tracking number: %s", event.OrderID, *event.TrackingNumber)
		}
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeOrderAlert, "Order shipped", message, link),
		}
	case enums.OrderStatusPickup:
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeOrderAlert, "Ready for pickup",
				fmt.Sprintf("Order %s is ready for pickup.", event.OrderID), link),
		}
	case enums.OrderStatusDelivered:
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeOrderAlert, "Order delivered",
				fmt.Sprintf("Order %s was delivered.", event.OrderID), link),
		}
	case enums.OrderStatusCancelled:
		message := fmt.Sprintf("Order %s was cancelled.", event.OrderID)
		return []models.Notification{
			newNotification(event.BuyerID, enums.NotificationTypeOrderAlert, "Order cancelled", message, link),
			newNotification(event.DistributorID, enums.NotificationTypeOrderAlert, "Order cancelled", message, link),
		}
	default:
		return nil
	}
}

func newNotification(userID uuid.UUID, kind enums.NotificationType, title, message, link string) models.Notification {
	return models.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    stringPtr(link),
	}
}

func orderLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/orders/%s", orderID)
}

func stringPtr(value string) *string {
	return &value
}
