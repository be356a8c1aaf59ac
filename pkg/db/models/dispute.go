package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// Dispute escalates a rejected refund to an administrator.
type Dispute struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID              uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	RefundID             uuid.UUID           `gorm:"column:refund_id;type:uuid;not null"`
	LodgedBy             uuid.UUID           `gorm:"column:lodged_by;type:uuid;not null"`
	Status               enums.DisputeStatus `gorm:"column:status;type:dispute_status;not null;default:'pending'"`
	DisputeAmount        decimal.Decimal     `gorm:"column:dispute_amount;type:numeric(12,2);not null"`
	DisputeDetails       string              `gorm:"column:dispute_details;not null"`
	DisputeResultDetails *string             `gorm:"column:dispute_result_details"`
	ResolvedBy           *uuid.UUID          `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt           *time.Time          `gorm:"column:resolved_at"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
