package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/contracts"
)

// generateCorrelationID creates a lightweight correlation ID like
// "req_20251028T184523_ab12cd".
func generateCorrelationID() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("req_%s_%s", time.Now().UTC().Format("20060102T150405"), hex.EncodeToString(b))
}

// generateRideNumber creates a human-readable ride number like
// "BR-20251028-4F2A9C". Uniqueness is enforced by the rides table.
func generateRideNumber() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("BR-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("BR-%s-%X", time.Now().UTC().Format("20060102"), b)
}

// recordTransition appends the event row for an effective transition. Runs
// inside the caller's transaction: the ride save and its event row commit
// together.
func (s *Dispatcher) recordTransition(ctx context.Context, r *ride.Ride, eventType ride.EventType, data map[string]any) error {
	evt, err := ride.NewEvent(r.ID, r.EventSeq, eventType, data)
	if err != nil {
		return err
	}
	return s.events.Append(ctx, evt)
}

// publishRideEvent fans out the full updated ride record. Best effort:
// failures are logged, the committed transition stands either way.
func (s *Dispatcher) publishRideEvent(ctx context.Context, r *ride.Ride, eventType ride.EventType, reason, corrID string) {
	msg := contracts.RideEventMessage{
		RideID:        r.ID,
		RideNumber:    r.RideNumber,
		EventSeq:      r.EventSeq,
		Status:        r.Status.String(),
		PickupBooth:   r.PickupBooth,
		VehicleClass:  r.VehicleClass.String(),
		DriverFare:    r.Fare.DriverFare,
		CustomerFare:  r.Fare.CustomerFare,
		PaymentStatus: r.PaymentStatus.String(),
		NeedsReview:   r.FareNeedsReview,
		Reason:        reason,
		Envelope: contracts.Envelope{
			CorrelationID: corrID,
			Producer:      "dispatch-service",
			SentAt:        time.Now().UTC(),
		},
	}
	if r.DriverID != nil {
		msg.DriverID = *r.DriverID
	}
	if err := s.pub.Publish(ctx, contracts.ChannelRides, eventType, msg); err != nil {
		s.logger.Error(ctx, "ride_event_publish_failed", "failed to publish ride event", err, map[string]any{
			"ride_id":    r.ID,
			"event_type": eventType.String(),
			"event_seq":  r.EventSeq,
		})
	}
}
