package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// Order is the aggregate root for a single purchase between a buyer and a distributor.
type Order struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID        uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null"`
	DistributorID  uuid.UUID            `gorm:"column:distributor_id;type:uuid;not null"`
	Status         enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'pending'"`
	DeliveryMethod enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method;not null"`
	OrderTotal     decimal.Decimal      `gorm:"column:order_total;type:numeric(12,2);not null"`
	TrackingNumber *string              `gorm:"column:tracking_number"`
	CancelReason   *string              `gorm:"column:cancel_reason"`
	Version        int64                `gorm:"column:version;not null;default:1"`
	AcceptedAt     *time.Time           `gorm:"column:accepted_at"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	CompletedAt    *time.Time           `gorm:"column:completed_at"`
	CanceledAt     *time.Time           `gorm:"column:canceled_at"`
	Items          []OrderLineItem      `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
