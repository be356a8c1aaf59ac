package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/api/responses"
	"github.com/angelmondragon/packfinderz-orderflow/api/validators"
	internalorders "github.com/angelmondragon/packfinderz-orderflow/internal/orders"
	"github.com/angelmondragon/packfinderz-orderflow/internal/reviews"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/pagination"
)

type pendingReviewLister interface {
	ListPending(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*reviews.PendingList, error)
}

type reviewDismisser interface {
	Dismiss(ctx context.Context, lineItemID uuid.UUID) error
}

// PendingReviews lists the caller's line items that still owe a review.
func PendingReviews(tracker pendingReviewLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review tracker unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers have pending reviews"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := tracker.ListPending(r.Context(), actor.UserID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// RecordReview marks the caller's review obligation for a line item fulfilled.
// Recording twice returns the same obligation.
func RecordReview(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineItemID, err := parseIDParam(r, "lineItemId", "line item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		obligation, err := svc.RecordReview(r.Context(), lineItemID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, obligation)
	}
}

// DismissReview clears a review obligation on an admin's say-so.
func DismissReview(tracker reviewDismisser, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "review tracker unavailable"))
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.ActorRoleAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins dismiss reviews"))
			return
		}
		lineItemID, err := parseIDParam(r, "lineItemId", "line item id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := tracker.Dismiss(r.Context(), lineItemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{
			"line_item_id": lineItemID.String(),
			"user_id":      actor.UserID.String(),
		})
		logg.Info(ctx, "review obligation dismissed")
		responses.WriteSuccess(w, map[string]bool{"dismissed": true})
	}
}
