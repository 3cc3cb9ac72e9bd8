package ports

import (
	"context"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BoothQueueRepository manages the per-booth-per-day queue documents.
//
// GetForUpdate must take the per-booth exclusive write lock so that every
// mutation of a booth's queue inside a unit of work is strictly serialized
// against all other writers of the same booth: computing "current count
// plus one" and writing it back has to be one atomic step. Save writes the
// document back and bumps its version.
type BoothQueueRepository interface {
	GetForUpdate(ctx context.Context, boothID, date string) (*queue.BoothQueue, error)
	Get(ctx context.Context, boothID, date string) (*queue.BoothQueue, error)
	Save(ctx context.Context, q *queue.BoothQueue) error
	ListBoothIDs(ctx context.Context, date string) ([]string, error)
}

// RideRepository defines the methods for managing ride data.
type RideRepository interface {
	CreateRide(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	GetByIDForUpdate(ctx context.Context, id string) (*ride.Ride, error)
	Save(ctx context.Context, r *ride.Ride) error
	// OldestPendingForBooth returns the longest-waiting PENDING ride at a
	// booth matching the vehicle class, or ride.ErrNotFound.
	OldestPendingForBooth(ctx context.Context, boothID string, class ride.VehicleClass) (*ride.Ride, error)
	ListNeedingFareReview(ctx context.Context, limit int) ([]*ride.Ride, error)
}

// RideEventRepository appends one row per effective lifecycle transition.
type RideEventRepository interface {
	Append(ctx context.Context, e *ride.Event) error
	ListForRide(ctx context.Context, rideID string) ([]*ride.Event, error)
}

// DriverRepository manages the driver queue-state projection.
type DriverRepository interface {
	GetByID(ctx context.Context, driverID string) (*driver.Driver, error)
	Save(ctx context.Context, d *driver.Driver) error
	Upsert(ctx context.Context, d *driver.Driver) error
}

// SnapshotCache caches queue snapshots for the admin query surface.
// Mutations invalidate; reads fall back to the repository on a miss.
type SnapshotCache interface {
	GetQueue(ctx context.Context, boothID, date string) (*queue.BoothQueue, bool)
	SetQueue(ctx context.Context, q *queue.BoothQueue, ttl time.Duration)
	InvalidateQueue(ctx context.Context, boothID, date string)
}

// EventPublisher is the narrow publish interface of the realtime fan-out
// collaborator. Delivery is at-least-once; payloads carry the full updated
// record so consumers resolve re-delivery and reordering by latest version.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, eventType ride.EventType, payload any) error
}
