package ride

import (
	"errors"
	"strings"
	"time"

	"booth-dispatch/internal/domain/fare"
)

// Ride is the domain entity corresponding to the `rides` table.
type Ride struct {
	// Identity & audit
	ID         string
	RideNumber string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Request
	PickupBooth  string
	VehicleClass VehicleClass

	// Assignment
	DriverID *string // nil until assigned

	// Core state
	Status Status

	// EventSeq increments on every effective transition. Fan-out consumers
	// de-duplicate at-least-once delivery by (ride id, event seq).
	EventSeq int64

	// Fare, owned by the reconciliation engine once assignment occurs.
	Fare          fare.Breakdown
	PaymentStatus PaymentStatus

	// FareNeedsReview marks the ride for manual admin reconciliation when
	// fare data is incomplete or out of tolerance. It never blocks the
	// lifecycle.
	FareNeedsReview bool

	// Lifecycle timestamps
	RequestedAt time.Time
	AssignedAt  *time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	CancellationReason *string
}

var (
	ErrBoothRequired           = errors.New("pickup booth is required")
	ErrRideNumberRequired      = errors.New("ride number is required")
	ErrDriverRequired          = errors.New("driver id is required")
	ErrAlreadyAssigned         = errors.New("driver already assigned")
	ErrNoDriverAssigned        = errors.New("no driver assigned")
	ErrInvalidStatusTransition = errors.New("invalid ride status transition")
	ErrNotFound                = errors.New("ride not found")
)

// NewRide creates a new ride request in PENDING state.
func NewRide(rideNumber, pickupBooth string, class VehicleClass) (*Ride, error) {
	if rideNumber = strings.TrimSpace(rideNumber); rideNumber == "" {
		return nil, ErrRideNumberRequired
	}
	if pickupBooth = strings.TrimSpace(pickupBooth); pickupBooth == "" {
		return nil, ErrBoothRequired
	}
	if !class.Valid() {
		return nil, ErrInvalidVehicleClass
	}

	now := time.Now().UTC()
	return &Ride{
		RideNumber:    rideNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
		PickupBooth:   pickupBooth,
		VehicleClass:  class,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		RequestedAt:   now,
	}, nil
}

// AssignDriver sets the driver and moves PENDING -> DRIVER_ASSIGNED.
func (ride *Ride) AssignDriver(driverID string) error {
	if driverID == "" {
		return ErrDriverRequired
	}
	if ride.DriverID != nil && *ride.DriverID != "" {
		return ErrAlreadyAssigned
	}
	if ride.Status != StatusPending {
		return ErrInvalidStatusTransition
	}

	ride.DriverID = &driverID
	now := time.Now().UTC()
	ride.AssignedAt = &now
	ride.setStatus(StatusDriverAssigned)
	return nil
}

// Start transitions DRIVER_ASSIGNED -> RIDE_STARTED.
func (ride *Ride) Start() error {
	if ride.DriverID == nil || *ride.DriverID == "" {
		return ErrNoDriverAssigned
	}
	if ride.Status != StatusDriverAssigned {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	ride.StartedAt = &now
	ride.setStatus(StatusRideStarted)
	return nil
}

// End transitions RIDE_STARTED -> RIDE_ENDED and records the finalized
// fare breakdown.
func (ride *Ride) End(breakdown fare.Breakdown) error {
	if ride.Status != StatusRideStarted {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	ride.EndedAt = &now
	ride.Fare = breakdown
	ride.setStatus(StatusRideEnded)
	return nil
}

// CompletePayment transitions RIDE_ENDED -> COMPLETED.
func (ride *Ride) CompletePayment() error {
	if ride.Status != StatusRideEnded {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	ride.CompletedAt = &now
	ride.PaymentStatus = PaymentPaid
	ride.setStatus(StatusCompleted)
	return nil
}

// Cancel transitions to CANCELLED. Only allowed from PENDING or
// DRIVER_ASSIGNED: a started ride cannot be cancelled.
func (ride *Ride) Cancel(reason string) error {
	if !ride.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	ride.CancelledAt = &now
	if rs := strings.TrimSpace(reason); rs != "" {
		ride.CancellationReason = &rs
	}
	ride.setStatus(StatusCancelled)
	return nil
}

// ClearDriver detaches the driver after a cancellation so the driver can
// return to queue eligibility.
func (ride *Ride) ClearDriver() {
	ride.DriverID = nil
}

func (ride *Ride) setStatus(next Status) {
	ride.Status = next
	ride.EventSeq++
	ride.UpdatedAt = time.Now().UTC()
}
