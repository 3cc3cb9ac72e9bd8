package service

import (
	"context"
	"strings"
	"time"

	"booth-dispatch/internal/domain/ride"
)

// CancelRide cancels a ride before pickup. A pre-assignment cancellation
// just closes the request; a post-assignment one also returns the driver to
// the front of the booth queue, in the same transaction, so the driver keeps
// earned seniority. A started ride cannot be cancelled.
func (s *Dispatcher) CancelRide(ctx context.Context, rideID, reason string) error {
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
		if r.Status == ride.StatusCancelled {
			return nil // duplicate delivery, already cancelled
		}

		requeueDriver := ""
		if r.Status == ride.StatusDriverAssigned && r.DriverID != nil {
			requeueDriver = *r.DriverID
		}

		if err := r.Cancel(reason); err != nil {
			return err
		}
		if requeueDriver != "" {
			r.ClearDriver()
			if _, err := s.assigner.ReinsertHead(txCtx, r.PickupBooth, requeueDriver, time.Now().UTC()); err != nil {
				return err
			}
		}
		if err := s.rides.Save(txCtx, r); err != nil {
			return err
		}

		effective = true
		return s.recordTransition(txCtx, r, ride.EventRideCancelled, map[string]any{
			"reason": strings.TrimSpace(reason),
		})
	})
	if err != nil {
		s.logger.Error(ctx, "ride_cancel_failed", "failed to cancel ride", err, nil)
		return err
	}
	if !effective {
		return nil
	}

	s.publishRideEvent(ctx, r, ride.EventRideCancelled, strings.TrimSpace(reason), corrID)
	s.logger.Info(ctx, "ride_cancelled", "ride cancelled", map[string]any{
		"ride_number": r.RideNumber,
	})
	return nil
}
