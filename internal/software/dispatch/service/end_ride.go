package service

import (
	"context"
	"errors"
	"strings"

	"booth-dispatch/internal/domain/fare"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// EndRide transitions RIDE_STARTED -> RIDE_ENDED and finalizes the fare
// from the inputs recorded at drop-off. Fare problems never block the
// transition: an incomplete or out-of-tolerance breakdown flags the ride
// for manual reconciliation and the lifecycle proceeds.
func (s *Dispatcher) EndRide(ctx context.Context, in ports.EndRideInput) error {
	in.RideID = strings.TrimSpace(in.RideID)
	if in.RideID == "" {
		return ride.ErrRideIDRequired
	}

	corrID := generateCorrelationID()
	ctx = s.logger.WithRequestID(ctx, corrID)
	ctx = s.logger.WithRideID(ctx, in.RideID)

	var (
		r         *ride.Ride
		effective bool
	)
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = s.rides.GetByIDForUpdate(txCtx, in.RideID)
		if err != nil {
			return err
		}
		switch r.Status {
		case ride.StatusRideEnded, ride.StatusCompleted:
			return nil // duplicate delivery, already ended
		}

		breakdown, fareErr := fare.Reconcile(fare.Inputs{
			DriverFare:   in.DriverFare,
			NightCharge:  in.NightCharge,
			SurgeFactor:  in.SurgeFactor,
			CustomerFare: in.CustomerFare,
		})
		needsReview := fareErr != nil || !breakdown.Validate()
		if fareErr != nil && !errors.Is(fareErr, fare.ErrToleranceExceeded) && !errors.Is(fareErr, fare.ErrDataIncomplete) {
			// genuinely malformed inputs (negative amounts, bad surge)
			return fareErr
		}

		if err := r.End(breakdown); err != nil {
			return err
		}
		r.FareNeedsReview = needsReview
		if err := s.rides.Save(txCtx, r); err != nil {
			return err
		}
		effective = true

		data := map[string]any{
			"driver_fare":   breakdown.DriverFare,
			"customer_fare": breakdown.CustomerFare,
		}
		if fareErr != nil {
			data["fare_error"] = fareErr.Error()
		}
		return s.recordTransition(txCtx, r, ride.EventRideEnded, data)
	})
	if err != nil {
		s.logger.Error(ctx, "ride_end_failed", "failed to end ride", err, nil)
		return err
	}
	if !effective {
		return nil
	}

	s.publishRideEvent(ctx, r, ride.EventRideEnded, "", corrID)
	s.logger.Info(ctx, "ride_ended", "ride ended, fare finalized", map[string]any{
		"ride_number":       r.RideNumber,
		"customer_fare":     r.Fare.CustomerFare,
		"driver_fare":       r.Fare.DriverFare,
		"fare_needs_review": r.FareNeedsReview,
	})
	return nil
}
