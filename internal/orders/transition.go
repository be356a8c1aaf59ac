package orders

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderflow/pkg/errors"
)

// TransitionContext carries the order facts a decision may depend on. Callers
// fill it from the persisted order, never from request input.
type TransitionContext struct {
	DeliveryMethod enums.DeliveryMethod
	TrackingNumber string
}

// InvalidTransitionDetails is attached to INVALID_TRANSITION errors.
type InvalidTransitionDetails struct {
	State  enums.OrderStatus `json:"state"`
	Action enums.OrderAction `json:"action"`
	Role   enums.ActorRole   `json:"role"`
}

type transitionKey struct {
	from   enums.OrderStatus
	action enums.OrderAction
	role   enums.ActorRole
}

type transitionRule struct {
	to enums.OrderStatus
	// requires restricts the rule to one delivery method; empty allows both.
	requires enums.DeliveryMethod
}

var transitionTable = map[transitionKey]transitionRule{
	{enums.OrderStatusPending, enums.OrderActionAccept, enums.ActorRoleDistributor}: {to: enums.OrderStatusAccepted},
	{enums.OrderStatusPending, enums.OrderActionReject, enums.ActorRoleDistributor}: {to: enums.OrderStatusCancelled},
	{enums.OrderStatusPending, enums.OrderActionCancel, enums.ActorRoleBuyer}:       {to: enums.OrderStatusCancelled},
	{enums.OrderStatusPending, enums.OrderActionCancel, enums.ActorRoleSystem}:      {to: enums.OrderStatusCancelled},

	{enums.OrderStatusAccepted, enums.OrderActionShip, enums.ActorRoleDistributor}: {
		to:       enums.OrderStatusShipped,
		requires: enums.DeliveryMethodDoorstep,
	},
	{enums.OrderStatusAccepted, enums.OrderActionMarkAwaitingPickup, enums.ActorRoleDistributor}: {
		to:       enums.OrderStatusPickup,
		requires: enums.DeliveryMethodSelfPickup,
	},

	{enums.OrderStatusShipped, enums.OrderActionDeliver, enums.ActorRoleDistributor}: {to: enums.OrderStatusDelivered},
	{enums.OrderStatusPickup, enums.OrderActionDeliver, enums.ActorRoleDistributor}:  {to: enums.OrderStatusDelivered},

	{enums.OrderStatusDelivered, enums.OrderActionComplete, enums.ActorRoleBuyer}:      {to: enums.OrderStatusCompleted},
	{enums.OrderStatusDelivered, enums.OrderActionRequestRefund, enums.ActorRoleBuyer}: {to: enums.OrderStatusDelivered},
	{enums.OrderStatusDelivered, enums.OrderActionLodgeDispute, enums.ActorRoleBuyer}:  {to: enums.OrderStatusDelivered},
}

// Decide returns the status an order moves to when role performs action from
// state. It performs no I/O.
func Decide(state enums.OrderStatus, action enums.OrderAction, role enums.ActorRole, tc TransitionContext) (enums.OrderStatus, error) {
	rule, ok := lookup(state, action, role, tc.DeliveryMethod)
	if !ok {
		return "", invalidTransition(state, action, role)
	}
	if action == enums.OrderActionShip && strings.TrimSpace(tc.TrackingNumber) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tracking number required to ship")
	}
	return rule.to, nil
}

// AvailableActions lists the actions role may take from state, in declaration order.
func AvailableActions(state enums.OrderStatus, role enums.ActorRole, tc TransitionContext) []enums.OrderAction {
	var actions []enums.OrderAction
	for _, action := range enums.OrderActions() {
		if _, ok := lookup(state, action, role, tc.DeliveryMethod); ok {
			actions = append(actions, action)
		}
	}
	return actions
}

func lookup(state enums.OrderStatus, action enums.OrderAction, role enums.ActorRole, method enums.DeliveryMethod) (transitionRule, bool) {
	rule, ok := transitionTable[transitionKey{from: state, action: action, role: role}]
	if !ok {
		return transitionRule{}, false
	}
	if rule.requires != "" && rule.requires != method {
		return transitionRule{}, false
	}
	return rule, true
}

func invalidTransition(state enums.OrderStatus, action enums.OrderAction, role enums.ActorRole) error {
	return pkgerrors.New(
		pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("%s cannot %s an order in state %s", role, action, state),
	).WithDetails(InvalidTransitionDetails{State: state, Action: action, Role: role})
}
