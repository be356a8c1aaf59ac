package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewObligation tracks whether a buyer still owes a review for a purchased line item.
type ReviewObligation struct {
	OrderLineItemID uuid.UUID  `gorm:"column:order_line_item_id;type:uuid;primaryKey"`
	OrderID         uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	BuyerID         uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null"`
	ProductID       uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	Position        int        `gorm:"column:position;not null"`
	IsReviewNeeded  bool       `gorm:"column:is_review_needed;not null;default:false"`
	IsPrompted      bool       `gorm:"column:is_prompted;not null;default:false"`
	PromptCount     int        `gorm:"column:prompt_count;not null;default:0"`
	LastPromptedAt  *time.Time `gorm:"column:last_prompted_at"`
	ReviewedAt      *time.Time `gorm:"column:reviewed_at"`
	DismissedAt     *time.Time `gorm:"column:dismissed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
