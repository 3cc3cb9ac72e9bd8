package service

import (
	"context"
	"errors"

	"booth-dispatch/internal/domain/ride"
)

// AssignWaiting offers a joining driver to the longest-waiting PENDING ride
// at the booth. Called by the queue manager inside the join transaction,
// before the driver would be enqueued; the caller owns the driver's
// projection row. Returns "" when no pending ride matches.
func (s *Dispatcher) AssignWaiting(ctx context.Context, boothID, driverID string, class ride.VehicleClass) (string, error) {
	r, err := s.rides.OldestPendingForBooth(ctx, boothID, class)
	if err != nil {
		if errors.Is(err, ride.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	if err := s.assignLocked(ctx, r, driverID); err != nil {
		return "", err
	}

	ctx = s.logger.WithRideID(ctx, r.ID)
	s.publishRideEvent(ctx, r, ride.EventRideAccepted, "", generateCorrelationID())
	s.logger.Info(ctx, "ride_matched_on_join", "joining driver matched to waiting ride", map[string]any{
		"driver_id": driverID,
	})
	return r.ID, nil
}
