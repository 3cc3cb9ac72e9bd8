package service

import (
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/ports"
)

// Nominal driver fares per vehicle class, used only for the estimate shown
// at assignment time. The finalized fare always comes from the inputs
// recorded at drop-off.
var estimateDriverFare = map[ride.VehicleClass]int64{
	ride.VehicleBike: 50,
	ride.VehicleAuto: 80,
	ride.VehicleCar:  120,
}

// Dispatcher drives a ride request through its lifecycle state machine:
// PENDING -> DRIVER_ASSIGNED -> RIDE_STARTED -> RIDE_ENDED -> COMPLETED,
// with CANCELLED reachable before pickup. It implements both
// ports.DispatchService and ports.PendingRideMatcher.
type Dispatcher struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	rides    ports.RideRepository
	events   ports.RideEventRepository
	drivers  ports.DriverRepository
	assigner ports.QueueAssigner
	pub      ports.EventPublisher
}

func NewDispatcher(
	log *logger.Logger,
	uow ports.UnitOfWork,
	rides ports.RideRepository,
	events ports.RideEventRepository,
	drivers ports.DriverRepository,
	assigner ports.QueueAssigner,
	pub ports.EventPublisher,
) *Dispatcher {
	return &Dispatcher{
		logger:   log,
		uow:      uow,
		rides:    rides,
		events:   events,
		drivers:  drivers,
		assigner: assigner,
		pub:      pub,
	}
}
