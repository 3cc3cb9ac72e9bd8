package service

import (
	"context"
	"strings"

	"booth-dispatch/internal/domain/ride"
)

// StartRide transitions DRIVER_ASSIGNED -> RIDE_STARTED. Re-delivery of a
// start the ride has already taken is a no-op success.
func (s *Dispatcher) StartRide(ctx context.Context, rideID string) error {
	rideID = strings.TrimSpace(rideID)
	if rideID == "" {
		return ride.ErrRideIDRequired
	}

	corrID := generateCorrelationID()
	ctx = s.logger.WithRequestID(ctx, corrID)
	ctx = s.logger.WithRideID(ctx, rideID)

	var (
		r         *ride.Ride
		effective bool
	)
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = s.rides.GetByIDForUpdate(txCtx, rideID)
		if err != nil {
			return err
		}
		switch r.Status {
		case ride.StatusRideStarted, ride.StatusRideEnded, ride.StatusCompleted:
			return nil // duplicate delivery, already started
		}
		if err := r.Start(); err != nil {
			return err
		}
		if err := s.rides.Save(txCtx, r); err != nil {
			return err
		}
		effective = true
		return s.recordTransition(txCtx, r, ride.EventRideStarted, nil)
	})
	if err != nil {
		s.logger.Error(ctx, "ride_start_failed", "failed to start ride", err, nil)
		return err
	}
	if !effective {
		return nil
	}

	s.publishRideEvent(ctx, r, ride.EventRideStarted, "", corrID)
	s.logger.Info(ctx, "ride_started", "ride started", map[string]any{
		"ride_number": r.RideNumber,
	})
	return nil
}
