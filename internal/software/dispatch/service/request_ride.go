package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"booth-dispatch/internal/domain/fare"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// RequestRide registers a ride request at a booth. When the booth queue has
// a driver of the requested class, the head of queue is assigned in the same
// transaction and the ride starts life as DRIVER_ASSIGNED; otherwise it
// waits in PENDING until a matching driver joins.
func (s *Dispatcher) RequestRide(ctx context.Context, in ports.RequestRideInput) (ports.RequestRideResult, error) {
	in.PickupBooth = strings.TrimSpace(in.PickupBooth)
	if in.PickupBooth == "" {
		return ports.RequestRideResult{}, ride.ErrBoothRequired
	}
	if !in.VehicleClass.Valid() {
		return ports.RequestRideResult{}, ride.ErrInvalidVehicleClass
	}

	corrID := generateCorrelationID()
	ctx = s.logger.WithRequestID(ctx, corrID)
	ctx = s.logger.WithBoothID(ctx, in.PickupBooth)

	var (
		r        *ride.Ride
		assigned bool
	)
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = ride.NewRide(generateRideNumber(), in.PickupBooth, in.VehicleClass)
		if err != nil {
			return err
		}
		if err := s.rides.CreateRide(txCtx, r); err != nil {
			return err
		}
		if err := s.recordTransition(txCtx, r, ride.EventNewRideRequest, nil); err != nil {
			return err
		}

		driverID, err := s.assigner.PopHead(txCtx, in.PickupBooth, in.VehicleClass, time.Now().UTC())
		if err != nil {
			if errors.Is(err, queue.ErrEmptyQueue) {
				return nil // no matching driver waiting, ride stays PENDING
			}
			return err
		}

		if err := s.assignLocked(txCtx, r, driverID); err != nil {
			return err
		}
		d, err := s.drivers.GetByID(txCtx, driverID)
		if err != nil {
			return err
		}
		d.AssignRide(r.ID)
		if err := s.drivers.Save(txCtx, d); err != nil {
			return err
		}
		assigned = true
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "ride_request_failed", "failed to register ride request", err, nil)
		return ports.RequestRideResult{}, err
	}

	ctx = s.logger.WithRideID(ctx, r.ID)
	s.publishRideEvent(ctx, r, ride.EventNewRideRequest, "", corrID)
	if assigned {
		s.publishRideEvent(ctx, r, ride.EventRideAccepted, "", corrID)
	}
	s.logger.Info(ctx, "ride_requested", "ride request registered", map[string]any{
		"ride_number": r.RideNumber,
		"status":      r.Status.String(),
	})

	result := ports.RequestRideResult{
		RideID:        r.ID,
		RideNumber:    r.RideNumber,
		Status:        r.Status.String(),
		EstimatedFare: r.Fare.CustomerFare,
	}
	if r.DriverID != nil {
		result.DriverID = *r.DriverID
	}
	return result, nil
}

// assignLocked attaches a popped driver to a PENDING ride, stamps the fare
// estimate, and records the transition. Runs inside the caller's transaction
// with the ride row already locked.
func (s *Dispatcher) assignLocked(ctx context.Context, r *ride.Ride, driverID string) error {
	if err := r.AssignDriver(driverID); err != nil {
		return err
	}
	if est, err := fare.Forward(estimateDriverFare[r.VehicleClass], 0, 1.0, 0); err == nil {
		r.Fare = est
	}
	if err := s.rides.Save(ctx, r); err != nil {
		return err
	}
	return s.recordTransition(ctx, r, ride.EventRideAccepted, map[string]any{
		"driver_id": driverID,
	})
}
