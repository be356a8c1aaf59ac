package refunds

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// Repository persists refund requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, refund *models.RefundRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error)
	FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.RefundRequest, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.RefundRequest, error)
	MarkResolved(ctx context.Context, id uuid.UUID, status enums.RefundStatus, resolvedBy uuid.UUID, note *string, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a refund repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, refund *models.RefundRequest) error {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RefundRequest, error) {
	var refund models.RefundRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

// FindPendingByOrder returns nil without error when the order has no pending refund.
func (r *repository) FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.RefundRequest, error) {
	var refund models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.RefundStatusPending).
		First(&refund).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.RefundRequest, error) {
	var refunds []models.RefundRequest
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// MarkResolved only touches rows that are still pending and reports how many it changed.
func (r *repository) MarkResolved(ctx context.Context, id uuid.UUID, status enums.RefundStatus, resolvedBy uuid.UUID, note *string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", id, enums.RefundStatusPending).
		Updates(map[string]any{
			"status":          status,
			"resolved_by":     resolvedBy,
			"resolution_note": note,
			"resolved_at":     at,
			"updated_at":      at,
		})
	return res.RowsAffected, res.Error
}
