package enums

import "slices"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderAlert    NotificationType = "order_alert"
	NotificationTypeReviewPrompt  NotificationType = "review_prompt"
	NotificationTypeRefundUpdate  NotificationType = "refund_update"
	NotificationTypeDisputeUpdate NotificationType = "dispute_update"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderAlert,
	NotificationTypeReviewPrompt,
	NotificationTypeRefundUpdate,
	NotificationTypeDisputeUpdate,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}
