// Package contracts defines the wire payloads published to the realtime
// fan-out. Delivery is at-least-once and may reorder: every payload
// carries the full updated record plus enough versioning (event seq /
// queue version) for the receiver to keep the latest state.
package contracts

import (
	"time"

	"booth-dispatch/internal/domain/queue"
)

// Envelope adds cross-cutting headers all messages carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // Correlation for tracing across services
	Producer      string    `json:"producer,omitempty"`       // Producer service name, e.g. "dispatch-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // ISO-8601 send time (UTC)
}

// RideEventMessage is published on every effective ride transition.
// Consumers de-duplicate by (ride_id, event_seq).
type RideEventMessage struct {
	RideID        string `json:"ride_id"`
	RideNumber    string `json:"ride_number"`
	EventSeq      int64  `json:"event_seq"`
	Status        string `json:"status"`
	PickupBooth   string `json:"pickup_booth"`
	VehicleClass  string `json:"vehicle_class"`
	DriverID      string `json:"driver_id,omitempty"`
	DriverFare    int64  `json:"driver_fare,omitempty"`
	CustomerFare  int64  `json:"customer_fare,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
	NeedsReview   bool   `json:"fare_needs_review,omitempty"`
	Reason        string `json:"reason,omitempty"`

	Envelope Envelope `json:"envelope"`
}

// QueueUpdatedMessage carries the full queue snapshot after any mutation.
// Receivers resolve out-of-order delivery by keeping the highest version.
type QueueUpdatedMessage struct {
	BoothID string        `json:"booth_id"`
	Date    string        `json:"date"`
	Version int64         `json:"version"`
	Entries []queue.Entry `json:"entries"`

	Envelope Envelope `json:"envelope"`
}
