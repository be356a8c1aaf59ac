package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-orderflow/internal/repo"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/pagination"
)

// Repository persists review obligations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, rows []models.ReviewObligation, activate bool) error
	Find(ctx context.Context, lineItemID uuid.UUID) (*models.ReviewObligation, error)
	NeededForOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	MarkReviewed(ctx context.Context, lineItemID uuid.UUID, at time.Time) error
	Dismiss(ctx context.Context, lineItemID uuid.UUID, at time.Time) (int64, error)
	IncrementPromptCount(ctx context.Context, lineItemID uuid.UUID, at time.Time) (int64, error)
	ListPending(ctx context.Context, buyerID uuid.UUID, after *pagination.Cursor, limit int) ([]models.ReviewObligation, error)
	ListDueForPrompt(ctx context.Context, cutoff time.Time, maxCount, limit int) ([]models.ReviewObligation, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds a review obligation repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

// Upsert inserts one obligation per row. With activate set, existing rows that
// were neither reviewed nor dismissed are flipped to review-needed; otherwise
// existing rows are left alone.
func (r *repository) Upsert(ctx context.Context, rows []models.ReviewObligation, activate bool) error {
	if len(rows) == 0 {
		return nil
	}
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_line_item_id"}},
		DoNothing: true,
	}
	if activate {
		conflict = clause.OnConflict{
			Columns: []clause.Column{{Name: "order_line_item_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"is_review_needed": true,
				"updated_at":       rows[0].UpdatedAt,
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "review_obligations.dismissed_at IS NULL AND review_obligations.reviewed_at IS NULL"},
			}},
		}
	}
	return r.DB(ctx).Clauses(conflict).Create(&rows).Error
}

func (r *repository) Find(ctx context.Context, lineItemID uuid.UUID) (*models.ReviewObligation, error) {
	var row models.ReviewObligation
	if err := r.DB(ctx).Where("order_line_item_id = ?", lineItemID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// NeededForOrder returns the line items of orderID still owing a review, by position.
func (r *repository) NeededForOrder(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.ReviewObligation{}).
		Where("order_id = ? AND is_review_needed = ?", orderID, true).
		Order("position ASC").
		Pluck("order_line_item_id", &ids).Error
	return ids, err
}

// MarkReviewed clears the obligation and flags the owning line item.
func (r *repository) MarkReviewed(ctx context.Context, lineItemID uuid.UUID, at time.Time) error {
	if err := r.DB(ctx).
		Model(&models.ReviewObligation{}).
		Where("order_line_item_id = ?", lineItemID).
		Updates(map[string]any{
			"is_review_needed": false,
			"reviewed_at":      at,
			"updated_at":       at,
		}).Error; err != nil {
		return err
	}
	return r.DB(ctx).
		Model(&models.OrderLineItem{}).
		Where("id = ?", lineItemID).
		Updates(map[string]any{"reviewed": true, "updated_at": at}).Error
}

func (r *repository) Dismiss(ctx context.Context, lineItemID uuid.UUID, at time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.ReviewObligation{}).
		Where("order_line_item_id = ? AND reviewed_at IS NULL AND dismissed_at IS NULL", lineItemID).
		Updates(map[string]any{
			"is_review_needed": false,
			"dismissed_at":     at,
			"updated_at":       at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) IncrementPromptCount(ctx context.Context, lineItemID uuid.UUID, at time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.ReviewObligation{}).
		Where("order_line_item_id = ?", lineItemID).
		Updates(map[string]any{
			"prompt_count":     gorm.Expr("prompt_count + 1"),
			"is_prompted":      true,
			"last_prompted_at": at,
			"updated_at":       at,
		})
	return res.RowsAffected, res.Error
}

// ListPending orders by (created_at, order_line_item_id) so a cursor taken from
// the last row resumes exactly where the previous page stopped.
func (r *repository) ListPending(ctx context.Context, buyerID uuid.UUID, after *pagination.Cursor, limit int) ([]models.ReviewObligation, error) {
	query := r.DB(ctx).
		Where("buyer_id = ? AND is_review_needed = ?", buyerID, true)
	if after != nil {
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND order_line_item_id > ?))",
			after.CreatedAt, after.CreatedAt, after.ID,
		)
	}
	var rows []models.ReviewObligation
	if err := query.
		Order("created_at ASC").
		Order("order_line_item_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListDueForPrompt(ctx context.Context, cutoff time.Time, maxCount, limit int) ([]models.ReviewObligation, error) {
	var rows []models.ReviewObligation
	if err := r.DB(ctx).
		Where("is_review_needed = ? AND prompt_count <= ?", true, maxCount).
		Where("(last_prompted_at IS NULL OR last_prompted_at <= ?)", cutoff).
		Order("created_at ASC").
		Order("order_line_item_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
