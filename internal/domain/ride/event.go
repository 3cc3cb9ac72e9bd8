package ride

import (
	"errors"
	"strings"
	"time"
)

// EventType names the lifecycle events published to the realtime fan-out.
// The values are part of the wire contract with subscribed consoles.
type EventType string

const (
	EventNewRideRequest EventType = "newRideRequest"
	EventRideAccepted   EventType = "rideAccepted"
	EventRideStarted    EventType = "rideStarted"
	EventRideEnded      EventType = "rideEnded"
	EventRideCompleted  EventType = "rideCompleted"
	EventRideCancelled  EventType = "rideCancelled"
	EventQueueUpdated   EventType = "queueUpdated"
)

var ErrInvalidEventType = errors.New("invalid event type")

// ParseEventType validates an event type string.
func ParseEventType(in string) (EventType, error) {
	et := EventType(strings.TrimSpace(in))
	if et.Valid() {
		return et, nil
	}
	return "", ErrInvalidEventType
}

// Valid reports whether eventType is one of the published event names.
func (eventType EventType) Valid() bool {
	switch eventType {
	case EventNewRideRequest, EventRideAccepted, EventRideStarted,
		EventRideEnded, EventRideCompleted, EventRideCancelled, EventQueueUpdated:
		return true
	default:
		return false
	}
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}

// Event is the domain entity corresponding to the `ride_events` table:
// one row per effective lifecycle transition, keyed by (ride id, seq).
type Event struct {
	ID        string
	CreatedAt time.Time

	RideID string
	Seq    int64

	Type EventType
	Data map[string]any
}

var ErrRideIDRequired = errors.New("ride id is required")

// NewEvent builds an event row for an effective transition.
func NewEvent(rideID string, seq int64, eventType EventType, data map[string]any) (*Event, error) {
	if rideID = strings.TrimSpace(rideID); rideID == "" {
		return nil, ErrRideIDRequired
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Event{
		CreatedAt: time.Now().UTC(),
		RideID:    rideID,
		Seq:       seq,
		Type:      eventType,
		Data:      data,
	}, nil
}
