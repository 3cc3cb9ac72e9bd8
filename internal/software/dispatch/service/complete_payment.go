package service

import (
	"context"
	"strings"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/ride"
)

// CompletePayment transitions RIDE_ENDED -> COMPLETED and releases the
// driver from the ride. The driver does not rejoin any queue automatically;
// rejoining is an explicit join call.
func (s *Dispatcher) CompletePayment(ctx context.Context, rideID string) error {
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
		if r.Status == ride.StatusCompleted {
			return nil // duplicate delivery, already settled
		}
		if err := r.CompletePayment(); err != nil {
			return err
		}
		if err := s.rides.Save(txCtx, r); err != nil {
			return err
		}

		if r.DriverID != nil {
			d, err := s.drivers.GetByID(txCtx, *r.DriverID)
			if err != nil && err != driver.ErrNotFound {
				return err
			}
			if d != nil {
				d.ReleaseRide()
				if err := s.drivers.Save(txCtx, d); err != nil {
					return err
				}
			}
		}

		effective = true
		return s.recordTransition(txCtx, r, ride.EventRideCompleted, map[string]any{
			"payment_status": r.PaymentStatus.String(),
		})
	})
	if err != nil {
		s.logger.Error(ctx, "ride_complete_failed", "failed to complete ride payment", err, nil)
		return err
	}
	if !effective {
		return nil
	}

	s.publishRideEvent(ctx, r, ride.EventRideCompleted, "", corrID)
	s.logger.Info(ctx, "ride_completed", "ride payment settled", map[string]any{
		"ride_number": r.RideNumber,
	})
	return nil
}
