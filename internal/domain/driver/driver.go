// Package driver holds the queue-state projection of a driver. Driver
// identity is owned elsewhere; this core only tracks the fields that
// govern queue eligibility and ride assignment.
package driver

import (
	"errors"
	"time"

	"booth-dispatch/internal/domain/ride"
)

// Driver corresponds to the `drivers` table.
type Driver struct {
	ID           string
	VehicleClass ride.VehicleClass

	IsOnline       bool
	CurrentBooth   *string
	QueuePosition  *int
	QueueEntryTime *time.Time
	CurrentRideID  *string

	UpdatedAt time.Time
}

var (
	ErrDriverIDRequired = errors.New("driver id is required")
	ErrStateInvariant   = errors.New("driver queue-state invariant violated")
	ErrOnActiveRide     = errors.New("driver is on an active ride")
	ErrNotFound         = errors.New("driver not found")
)

// New creates an offline driver projection.
func New(id string, class ride.VehicleClass) (*Driver, error) {
	if id == "" {
		return nil, ErrDriverIDRequired
	}
	if !class.Valid() {
		return nil, ride.ErrInvalidVehicleClass
	}
	return &Driver{ID: id, VehicleClass: class, UpdatedAt: time.Now().UTC()}, nil
}

// CheckInvariant verifies queue position is set iff the driver is online,
// at a booth, and not on a ride.
func (d *Driver) CheckInvariant() error {
	queued := d.QueuePosition != nil
	eligible := d.IsOnline && d.CurrentBooth != nil && d.CurrentRideID == nil
	if queued && !eligible {
		return ErrStateInvariant
	}
	return nil
}

// EnterQueue records the driver joining a booth queue.
func (d *Driver) EnterQueue(boothID string, position int, entryTime time.Time) {
	d.IsOnline = true
	d.CurrentBooth = &boothID
	d.QueuePosition = &position
	t := entryTime.UTC()
	d.QueueEntryTime = &t
	d.UpdatedAt = time.Now().UTC()
}

// LeaveQueue clears the queue fields; the driver stays online.
func (d *Driver) LeaveQueue() {
	d.CurrentBooth = nil
	d.QueuePosition = nil
	d.QueueEntryTime = nil
	d.UpdatedAt = time.Now().UTC()
}

// AssignRide moves the driver out of the queue and onto a ride.
func (d *Driver) AssignRide(rideID string) {
	d.QueuePosition = nil
	d.QueueEntryTime = nil
	d.CurrentRideID = &rideID
	d.UpdatedAt = time.Now().UTC()
}

// ReleaseRide clears the current ride; does not requeue.
func (d *Driver) ReleaseRide() {
	d.CurrentRideID = nil
	d.UpdatedAt = time.Now().UTC()
}

// GoOffline clears all queue state.
func (d *Driver) GoOffline() {
	d.IsOnline = false
	d.LeaveQueue()
}
