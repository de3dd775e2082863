package orders

import "errors"

var (
	// ErrMalformedItem rejects a structurally invalid order line.
	ErrMalformedItem = errors.New("malformed item")
	// ErrNoItems rejects an order without lines.
	ErrNoItems = errors.New("items required")
	// ErrDeliveryDateRequired rejects an order without fecha_entrega.
	ErrDeliveryDateRequired = errors.New("fecha_entrega required")
	// ErrInvalidDeliveryDate rejects an unparseable fecha_entrega.
	ErrInvalidDeliveryDate = errors.New("invalid fecha_entrega")
	// ErrDeliveryOutsideWeek rejects a fecha_entrega outside Monday to Friday of its week.
	ErrDeliveryOutsideWeek = errors.New("fecha_entrega must fall on a weekday of an ordering week")
	// ErrDayClosed indicates a line's weekday was disabled while the order was being placed.
	ErrDayClosed = errors.New("day no longer accepts orders")
	// ErrNothingToOrder is returned when every line was filtered out.
	ErrNothingToOrder = errors.New("no items left for enabled days")
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden indicates the caller may not see the order.
	ErrForbidden = errors.New("order not visible")
	// ErrOrderLocked indicates fulfillment already started.
	ErrOrderLocked = errors.New("order can no longer be deleted")
)
