package enums

import "slices"

// OrderAction names a request made against an order.
type OrderAction string

const (
	OrderActionAccept             OrderAction = "accept"
	OrderActionReject             OrderAction = "reject"
	OrderActionShip               OrderAction = "ship"
	OrderActionMarkAwaitingPickup OrderAction = "mark_awaiting_pickup"
	OrderActionDeliver            OrderAction = "deliver"
	OrderActionComplete           OrderAction = "complete"
	OrderActionCancel             OrderAction = "cancel"
	OrderActionRequestRefund      OrderAction = "request_refund"
	OrderActionLodgeDispute       OrderAction = "lodge_dispute"
)

var validOrderActions = []OrderAction{
	OrderActionAccept,
	OrderActionReject,
	OrderActionShip,
	OrderActionMarkAwaitingPickup,
	OrderActionDeliver,
	OrderActionComplete,
	OrderActionCancel,
	OrderActionRequestRefund,
	OrderActionLodgeDispute,
}

// OrderActions returns every known action.
func OrderActions() []OrderAction {
	out := make([]OrderAction, len(validOrderActions))
	copy(out, validOrderActions)
	return out
}

// String implements fmt.Stringer.
func (a OrderAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known OrderAction.
func (a OrderAction) IsValid() bool {
	return slices.Contains(validOrderActions, a)
}
