package ride

import (
	"errors"
	"strings"
)

// Status is a ride status as stored in the `rides` table.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusDriverAssigned Status = "DRIVER_ASSIGNED"
	StatusRideStarted    Status = "RIDE_STARTED"
	StatusRideEnded      Status = "RIDE_ENDED"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusPending, StatusDriverAssigned, StatusRideStarted, StatusRideEnded, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// Cancellation is only reachable before pickup.
func (status Status) CanTransitionTo(next Status) bool {
	switch status {
	case StatusPending:
		return next == StatusDriverAssigned || next == StatusCancelled

	case StatusDriverAssigned:
		return next == StatusRideStarted || next == StatusCancelled

	case StatusRideStarted:
		return next == StatusRideEnded

	case StatusRideEnded:
		return next == StatusCompleted

	case StatusCompleted, StatusCancelled:
		return false

	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state. Rides are archival
// records: a terminal ride is never deleted, only read.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}
