package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// UpdateVersioned applies updates only when the stored version still equals
	// expected, bumping it by one. It returns the number of rows changed.
	UpdateVersioned(ctx context.Context, orderID uuid.UUID, expected int64, updates map[string]any) (int64, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}
