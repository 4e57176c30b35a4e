package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSlotBusy means another caller holds the slot's lock right now.
	ErrSlotBusy = errors.New("slot is currently being booked, please retry")

	// ErrInvalidStatusTransition guards the terminal states: completed and
	// cancelled appointments never transition again.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// Unavailability reasons carried by SlotUnavailableError.
const (
	UnavailableClosed = "closed"
	UnavailableFull   = "full"
)

// ValidationError reports malformed or missing input. It is never retried
// and is surfaced verbatim to the caller.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// SlotUnavailableError is a business-rule conflict: the requested slot is on
// a closed day/time or has no remaining capacity.
type SlotUnavailableError struct {
	Date   string
	Time   string
	Reason string
}

func (e *SlotUnavailableError) Error() string {
	switch e.Reason {
	case UnavailableClosed:
		return fmt.Sprintf("slot %s %s is outside clinic hours", e.Date, e.Time)
	case UnavailableFull:
		return fmt.Sprintf("slot %s %s is fully booked", e.Date, e.Time)
	default:
		return fmt.Sprintf("slot %s %s is unavailable", e.Date, e.Time)
	}
}

// NotFoundError means the operation targeted a nonexistent appointment id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointment %s not found", e.ID)
}
