package reviews

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderflow/internal/repo"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/pagination"
)

// PendingList is one page of outstanding obligations.
type PendingList struct {
	Items      []models.ReviewObligation `json:"items"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

// Tracker decides which purchased line items still owe a review and when a
// buyer has been prompted often enough.
type Tracker interface {
	OpenPending(ctx context.Context, tx *gorm.DB, order *models.Order) error
	OnOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) ([]uuid.UUID, error)
	RecordReview(ctx context.Context, tx *gorm.DB, buyerID, lineItemID uuid.UUID) (*models.ReviewObligation, error)
	Dismiss(ctx context.Context, lineItemID uuid.UUID) error
	Get(ctx context.Context, lineItemID uuid.UUID) (*models.ReviewObligation, error)
	ListPending(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*PendingList, error)
	ListDueForPrompt(ctx context.Context, limit int) ([]models.ReviewObligation, error)
	IncrementPromptCount(ctx context.Context, lineItemID uuid.UUID) error
	ShouldSuppressFurtherPrompts(ctx context.Context, lineItemID uuid.UUID) (bool, error)
}

// TrackerParams wires the tracker.
type TrackerParams struct {
	Repository     Repository
	PromptLimit    int
	PromptInterval time.Duration
	Now            func() time.Time
}

type tracker struct {
	repo           Repository
	promptLimit    int
	promptInterval time.Duration
	now            func() time.Time
}

// NewTracker validates params and returns a Tracker.
func NewTracker(params TrackerParams) (Tracker, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("review obligation repository required")
	}
	if params.PromptLimit <= 0 {
		return nil, fmt.Errorf("prompt threshold must be positive")
	}
	if params.PromptInterval < 0 {
		return nil, fmt.Errorf("prompt interval must not be negative")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &tracker{
		repo:           params.Repository,
		promptLimit:    params.PromptLimit,
		promptInterval: params.PromptInterval,
		now:            now,
	}, nil
}

// OpenPending creates inactive obligations when an order is delivered.
func (t *tracker) OpenPending(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if err := t.repo.WithTx(tx).Upsert(ctx, t.rowsFor(order, false), false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open review obligations")
	}
	return nil
}

// OnOrderCompleted activates one obligation per line item and returns the ids
// that now owe a review. Items dismissed or reviewed earlier stay cleared.
func (t *tracker) OnOrderCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) ([]uuid.UUID, error) {
	if order.Status != enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "review obligations activate only on completed orders")
	}
	r := t.repo.WithTx(tx)
	if err := r.Upsert(ctx, t.rowsFor(order, true), true); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate review obligations")
	}
	ids, err := r.NeededForOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list activated review obligations")
	}
	return ids, nil
}

// RecordReview clears the obligation. Repeating it is a no-op.
func (t *tracker) RecordReview(ctx context.Context, tx *gorm.DB, buyerID, lineItemID uuid.UUID) (*models.ReviewObligation, error) {
	r := t.repo.WithTx(tx)
	row, err := r.Find(ctx, lineItemID)
	if err != nil {
		return nil, repo.Translate(err, "review obligation")
	}
	if row.BuyerID != buyerID {
		return nil, pkgerrors.NotParty("line item belongs to another buyer")
	}
	if row.ReviewedAt != nil {
		return row, nil
	}
	if !row.IsReviewNeeded && row.DismissedAt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been completed")
	}

	now := t.now().UTC()
	if err := r.MarkReviewed(ctx, lineItemID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record review")
	}
	row.IsReviewNeeded = false
	row.ReviewedAt = &now
	row.UpdatedAt = now
	return row, nil
}

// Dismiss clears an obligation administratively. Dismissing twice is a no-op.
func (t *tracker) Dismiss(ctx context.Context, lineItemID uuid.UUID) error {
	affected, err := t.repo.Dismiss(ctx, lineItemID, t.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dismiss review obligation")
	}
	if affected == 0 {
		if _, err := t.Get(ctx, lineItemID); err != nil {
			return err
		}
	}
	return nil
}

func (t *tracker) Get(ctx context.Context, lineItemID uuid.UUID) (*models.ReviewObligation, error) {
	row, err := t.repo.Find(ctx, lineItemID)
	if err != nil {
		return nil, repo.Translate(err, "review obligation")
	}
	return row, nil
}

func (t *tracker) ListPending(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*PendingList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	size, fetch := pagination.Window(params.Limit)
	rows, err := t.repo.ListPending(ctx, buyerID, cursor, fetch)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending reviews")
	}

	list := &PendingList{}
	list.Items, list.NextCursor = pagination.Page(rows, size, func(row models.ReviewObligation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.OrderLineItemID}
	})
	return list, nil
}

// ListDueForPrompt returns active obligations not prompted within the
// configured interval and still under the threshold.
func (t *tracker) ListDueForPrompt(ctx context.Context, limit int) ([]models.ReviewObligation, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	cutoff := t.now().UTC().Add(-t.promptInterval)
	rows, err := t.repo.ListDueForPrompt(ctx, cutoff, t.promptLimit, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list review prompts due")
	}
	return rows, nil
}

func (t *tracker) IncrementPromptCount(ctx context.Context, lineItemID uuid.UUID) error {
	affected, err := t.repo.IncrementPromptCount(ctx, lineItemID, t.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment prompt count")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "review obligation not found")
	}
	return nil
}

// ShouldSuppressFurtherPrompts is true once prompt_count exceeds the threshold,
// and for obligations that no longer need a review.
func (t *tracker) ShouldSuppressFurtherPrompts(ctx context.Context, lineItemID uuid.UUID) (bool, error) {
	row, err := t.Get(ctx, lineItemID)
	if err != nil {
		return false, err
	}
	if !row.IsReviewNeeded {
		return true, nil
	}
	return row.PromptCount > t.promptLimit, nil
}

func (t *tracker) rowsFor(order *models.Order, needed bool) []models.ReviewObligation {
	now := t.now().UTC()
	rows := make([]models.ReviewObligation, 0, len(order.Items))
	for _, item := range order.Items {
		rows = append(rows, models.ReviewObligation{
			OrderLineItemID: item.ID,
			OrderID:         order.ID,
			BuyerID:         order.BuyerID,
			ProductID:       item.ProductID,
			Position:        item.Position,
			IsReviewNeeded:  needed,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return rows
}
