package reservations

import (
	"errors"
	"fmt"
)

var (
	ErrSlotConflict        = errors.New("the selected time is not available")
	ErrInvalidCost         = errors.New("cost must be a non-negative number")
	ErrInvalidInterval     = errors.New("end time must be after start time")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrResourceNotFound    = errors.New("resource not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrForbidden           = errors.New("operation not allowed for this caller")
	// ErrLockTimeout means the resource lock could not be acquired in time; callers may retry.
	ErrLockTimeout = errors.New("resource is busy, retry shortly")
)

// OutOfHoursError reports a slot outside the resource operating window.
type OutOfHoursError struct {
	Hours OperatingHours
}

func (e *OutOfHoursError) Error() string {
	return fmt.Sprintf("the selected time is outside operating hours (%s - %s)", e.Hours.Open, e.Hours.Close)
}

// TransitionError is returned when an operation is illegal for the current status.
type TransitionError struct {
	Op   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot %s a %s reservation", e.Op, e.From)
	}
	return fmt.Sprintf("cannot %s reservation from %s to %s", e.Op, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsNotFound reports whether err is an unknown resource or reservation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrReservationNotFound)
}
