package enums

import "slices"

// DeliveryMethod is fixed when the order is created.
type DeliveryMethod string

const (
	DeliveryMethodDoorstep   DeliveryMethod = "doorstep"
	DeliveryMethodSelfPickup DeliveryMethod = "self_pickup"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodDoorstep,
	DeliveryMethodSelfPickup,
}

// String implements fmt.Stringer.
func (d DeliveryMethod) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	return slices.Contains(validDeliveryMethods, d)
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	return parse(value, validDeliveryMethods, "delivery method")
}
