package ports

import (
	"context"
	"time"

	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
)

// ----- DTOs for the Queue Manager -----

// JoinQueueInput is the validated input for POST /booths/{booth_id}/queue.
type JoinQueueInput struct {
	BoothID      string
	DriverID     string
	VehicleClass ride.VehicleClass
}

// JoinQueueResult is returned by QueueService.Join.
type JoinQueueResult struct {
	BoothID string `json:"booth_id"`
	// Position is 0 when the driver was matched to a waiting ride instead
	// of being enqueued; RideID then carries the assignment.
	Position int    `json:"position,omitempty"`
	RideID   string `json:"ride_id,omitempty"`
	Message  string `json:"message"`
}

// RepairResult summarizes one repair pass over a booth.
type RepairResult struct {
	BoothID      string `json:"booth_id"`
	Drifted      bool   `json:"drifted"`
	SweptDrivers int    `json:"swept_drivers"`
	Entries      int    `json:"entries"`
}

// ----- Queue Manager Interface -----

// QueueService is the booth queue manager: all mutations of a booth's
// queue are serialized per booth.
type QueueService interface {
	Join(ctx context.Context, in JoinQueueInput) (JoinQueueResult, error)
	Leave(ctx context.Context, boothID, driverID string) error
	Snapshot(ctx context.Context, boothID string) (*queue.BoothQueue, error)
	Repair(ctx context.Context, boothID string) (RepairResult, error)
	RepairAll(ctx context.Context) ([]RepairResult, error)
	RunMaintenance(ctx context.Context)
}

// QueueAssigner is the narrow surface the dispatcher needs from the queue
// manager: obtaining (and removing) the head-of-queue driver, and putting
// a driver back after a pre-pickup cancellation. Both run inside the
// caller's unit of work so ride transition and queue mutation commit as
// one logical unit.
type QueueAssigner interface {
	PopHead(ctx context.Context, boothID string, class ride.VehicleClass, at time.Time) (string, error)
	ReinsertHead(ctx context.Context, boothID, driverID string, at time.Time) (int, error)
}

// ----- DTOs for the Ride Dispatcher -----

// RequestRideInput is the validated input for POST /rides.
type RequestRideInput struct {
	PickupBooth  string
	VehicleClass ride.VehicleClass
}

// RequestRideResult is returned by DispatchService.RequestRide.
type RequestRideResult struct {
	RideID        string `json:"ride_id"`
	RideNumber    string `json:"ride_number"`
	Status        string `json:"status"`
	DriverID      string `json:"driver_id,omitempty"`
	EstimatedFare int64  `json:"estimated_fare,omitempty"`
}

// EndRideInput carries the fare inputs recorded at drop-off.
type EndRideInput struct {
	RideID       string
	DriverFare   int64
	NightCharge  int64
	SurgeFactor  float64
	CustomerFare int64
}

// ----- Ride Dispatcher Interface -----

// DispatchService drives a ride through its lifecycle state machine.
// Transitions are idempotent at this boundary: re-delivery of a transition
// the ride has already taken is a no-op success.
type DispatchService interface {
	RequestRide(ctx context.Context, in RequestRideInput) (RequestRideResult, error)
	StartRide(ctx context.Context, rideID string) error
	EndRide(ctx context.Context, in EndRideInput) error
	CompletePayment(ctx context.Context, rideID string) error
	CancelRide(ctx context.Context, rideID, reason string) error
}

// PendingRideMatcher is called by the queue manager on every join, before
// the driver is enqueued: a newly joining driver is first checked against
// any waiting unmatched ride request. Returns the assigned ride id, or ""
// when no pending ride matched.
type PendingRideMatcher interface {
	AssignWaiting(ctx context.Context, boothID, driverID string, class ride.VehicleClass) (string, error)
}

// ----- Admin query surface -----

// DriverQueueState is the admin view of where a driver stands.
type DriverQueueState struct {
	DriverID       string     `json:"driver_id"`
	IsOnline       bool       `json:"is_online"`
	CurrentBooth   *string    `json:"current_booth,omitempty"`
	QueuePosition  *int       `json:"queue_position,omitempty"`
	QueueEntryTime *time.Time `json:"queue_entry_time,omitempty"`
	CurrentRideID  *string    `json:"current_ride_id,omitempty"`
}

// AdminService is the read-only query interface used by admin dashboards.
type AdminService interface {
	GetQueueSnapshot(ctx context.Context, boothID string) (*queue.BoothQueue, error)
	GetRideStatus(ctx context.Context, rideID string) (*ride.Ride, error)
	GetDriverQueueState(ctx context.Context, driverID string) (DriverQueueState, error)
}
