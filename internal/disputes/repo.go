package disputes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

// Repository persists disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindByRefund(ctx context.Context, refundID uuid.UUID) (*models.Dispute, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error)
	MarkResolved(ctx context.Context, id uuid.UUID, status enums.DisputeStatus, resolvedBy uuid.UUID, details string, at time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a dispute repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// FindByRefund returns nil without error when no dispute references the refund.
func (r *repository) FindByRefund(ctx context.Context, refundID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).Where("refund_id = ?", refundID).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}

func (r *repository) MarkResolved(ctx context.Context, id uuid.UUID, status enums.DisputeStatus, resolvedBy uuid.UUID, details string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, enums.DisputeStatusPending).
		Updates(map[string]any{
			"status":                 status,
			"dispute_result_details": details,
			"resolved_by":            resolvedBy,
			"resolved_at":            at,
			"updated_at":             at,
		})
	return res.RowsAffected, res.Error
}
