package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/packfinderz-orderflow/pkg/db/types"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// RefundRequest is a buyer's claim against a delivered order. It never mutates the order total.
type RefundRequest struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	RequestedBy    uuid.UUID            `gorm:"column:requested_by;type:uuid;not null"`
	LineItemIDs    dbtypes.UUIDList     `gorm:"column:line_item_ids;type:uuid[]"`
	Amount         decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason         string               `gorm:"column:reason;not null"`
	ReasonCategory enums.RefundCategory `gorm:"column:reason_category;type:refund_category;not null;default:'other'"`
	Status         enums.RefundStatus   `gorm:"column:status;type:refund_status;not null;default:'pending'"`
	ResolvedBy     *uuid.UUID           `gorm:"column:resolved_by;type:uuid"`
	ResolutionNote *string              `gorm:"column:resolution_note"`
	ResolvedAt     *time.Time           `gorm:"column:resolved_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
