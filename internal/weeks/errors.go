package weeks

import "errors"

var (
	// ErrNotFound indicates the requested week does not exist.
	ErrNotFound = errors.New("week not found")
	// ErrNoActiveWindow indicates no enabled, unclosed week exists.
	ErrNoActiveWindow = errors.New("no active ordering window")
	// ErrWindowNotEnabled indicates the week exists but is switched off.
	ErrWindowNotEnabled = errors.New("week is not enabled for orders")
	// ErrWindowClosed indicates the close instant of the week has passed.
	ErrWindowClosed = errors.New("ordering window has closed")
	// ErrWeekHasOrders blocks deleting a week with deliveries inside it.
	ErrWeekHasOrders = errors.New("week has orders and cannot be deleted")
	// ErrInvalidRange indicates the dates do not span Monday to Friday of one ISO week.
	ErrInvalidRange = errors.New("week must start on monday and end on the friday of the same week")
	// ErrCloseOutsideWeek indicates a close instant outside the week's dates.
	ErrCloseOutsideWeek = errors.New("close date must fall within the week")
)
