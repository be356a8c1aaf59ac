package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderflow/api/middleware"
	"github.com/angelmondragon/packfinderz-orderflow/api/responses"
	"github.com/angelmondragon/packfinderz-orderflow/api/validators"
	internalorders "github.com/angelmondragon/packfinderz-orderflow/internal/orders"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
)

const (
	maxReasonLength  = 2000
	maxTrackingChars = 128
)

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type refundRequest struct {
	LineItemIDs []uuid.UUID     `json:"line_item_ids"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason" validate:"required,max=2000"`
	Category    string          `json:"category" validate:"required"`
}

type disputeRequest struct {
	RefundID uuid.UUID        `json:"refund_id" validate:"required"`
	Details  string           `json:"details" validate:"required,max=2000"`
	Amount   *decimal.Decimal `json:"amount"`
}

type resolveRefundRequest struct {
	Note *string `json:"note" validate:"omitempty,max=2000"`
}

type resolveDisputeRequest struct {
	Status        string `json:"status"`
	ResultDetails string `json:"result_details" validate:"required,max=2000"`
}

type createOrderRequest struct {
	BuyerID        uuid.UUID               `json:"buyer_id" validate:"required"`
	DistributorID  uuid.UUID               `json:"distributor_id" validate:"required"`
	DeliveryMethod string                  `json:"delivery_method" validate:"required"`
	Items          []createLineItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createLineItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"price"`
}

// Detail returns the order read model for a party to the order or an admin.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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
		orderID, err := parseIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetOrder(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ApplyAction returns a handler bound to one order action. The action's
// payload comes from the query string or the JSON body depending on the action.
func ApplyAction(svc internalorders.Service, action enums.OrderAction, logg *logger.Logger) http.HandlerFunc {
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
		orderID, err := parseIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload, err := actionPayload(r, action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithFields(r.Context(), map[string]any{
			"order_id": orderID.String(),
			"action":   string(action),
		})
		view, err := svc.ApplyAction(ctx, internalorders.ApplyActionInput{
			OrderID: orderID,
			Action:  action,
			Actor:   actor,
			Payload: payload,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ResolveRefund approves or rejects a pending refund request. Admins and the
// order's distributor share this handler; the facade enforces ownership.
func ResolveRefund(svc internalorders.Service, decision enums.RefundStatus, logg *logger.Logger) http.HandlerFunc {
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
		refundID, err := parseIDParam(r, "refundId", "refund id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveRefundRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if req.Note != nil {
			note := validators.CleanText(*req.Note, maxReasonLength)
			req.Note = &note
		}

		view, err := svc.ResolveRefund(r.Context(), internalorders.ResolveRefundInput{
			RefundID: refundID,
			Decision: decision,
			Note:     req.Note,
			Actor:    actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ResolveDispute closes a pending dispute. Status defaults to resolved.
func ResolveDispute(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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
		disputeID, err := parseIDParam(r, "disputeId", "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.DisputeStatusResolved
		if raw := strings.TrimSpace(req.Status); raw != "" {
			parsed, err := enums.ParseDisputeStatus(raw)
			if err != nil || !parsed.IsTerminal() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status must be resolved or rejected"))
				return
			}
			status = parsed
		}

		view, err := svc.ResolveDispute(r.Context(), internalorders.ResolveDisputeInput{
			DisputeID:     disputeID,
			Status:        status,
			ResultDetails: validators.CleanText(req.ResultDetails, maxReasonLength),
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Create places a new PENDING order on behalf of checkout.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParseDeliveryMethod(strings.TrimSpace(req.DeliveryMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method"))
			return
		}

		input := internalorders.CreateOrderInput{
			BuyerID:        req.BuyerID,
			DistributorID:  req.DistributorID,
			DeliveryMethod: method,
			Items:          make([]internalorders.CreateLineItemInput, 0, len(req.Items)),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.CreateLineItemInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		view, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func actionPayload(r *http.Request, action enums.OrderAction) (internalorders.ActionPayload, error) {
	var payload internalorders.ActionPayload
	switch action {
	case enums.OrderActionShip:
		tracking := validators.CleanText(r.URL.Query().Get("trackingNo"), maxTrackingChars)
		if tracking == "" {
			return payload, pkgerrors.New(pkgerrors.CodeValidation, "trackingNo is required")
		}
		payload.TrackingNumber = tracking
	case enums.OrderActionCancel, enums.OrderActionReject:
		if !hasBody(r) {
			return payload, nil
		}
		var req reasonRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return payload, err
		}
		payload.CancelReason = validators.CleanText(req.Reason, maxReasonLength)
	case enums.OrderActionRequestRefund:
		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return payload, err
		}
		category, err := enums.ParseRefundCategory(strings.TrimSpace(req.Category))
		if err != nil {
			return payload, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund category")
		}
		payload.Refund = &internalorders.RefundPayload{
			LineItemIDs: req.LineItemIDs,
			Amount:      req.Amount,
			Reason:      validators.CleanText(req.Reason, maxReasonLength),
			Category:    category,
		}
	case enums.OrderActionLodgeDispute:
		var req disputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return payload, err
		}
		payload.Dispute = &internalorders.DisputePayload{
			RefundID: req.RefundID,
			Details:  validators.CleanText(req.Details, maxReasonLength),
			Amount:   req.Amount,
		}
	}
	return payload, nil
}

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	// System actions come from workers, never from a bearer token.
	if !caller.Role.IsValid() || caller.Role == enums.ActorRoleSystem {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid role")
	}
	return internalorders.Actor{UserID: caller.UserID, Role: caller.Role}, nil
}

func parseIDParam(r *http.Request, param, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
