package service

import (
	"context"
	"strings"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/ports"
)

// AdminBoard is the read-only query surface backing admin dashboards. Queue
// snapshots come through the queue manager so they benefit from its cache;
// ride and driver lookups hit the store directly.
type AdminBoard struct {
	logger   *logger.Logger
	uow      ports.UnitOfWork
	queueSvc ports.QueueService
	rides    ports.RideRepository
	drivers  ports.DriverRepository
}

func NewAdminBoard(
	log *logger.Logger,
	uow ports.UnitOfWork,
	queueSvc ports.QueueService,
	rides ports.RideRepository,
	drivers ports.DriverRepository,
) *AdminBoard {
	return &AdminBoard{
		logger:   log,
		uow:      uow,
		queueSvc: queueSvc,
		rides:    rides,
		drivers:  drivers,
	}
}

// GetQueueSnapshot returns the position-ordered queue at a booth today.
func (s *AdminBoard) GetQueueSnapshot(ctx context.Context, boothID string) (*queue.BoothQueue, error) {
	return s.queueSvc.Snapshot(ctx, boothID)
}

// GetRideStatus returns the full current ride record.
func (s *AdminBoard) GetRideStatus(ctx context.Context, rideID string) (*ride.Ride, error) {
	rideID = strings.TrimSpace(rideID)
	if rideID == "" {
		return nil, ride.ErrRideIDRequired
	}

	var r *ride.Ride
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		r, err = s.rides.GetByID(txCtx, rideID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetDriverQueueState returns where a driver stands: online flag, booth,
// queue position and any active ride.
func (s *AdminBoard) GetDriverQueueState(ctx context.Context, driverID string) (ports.DriverQueueState, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return ports.DriverQueueState{}, driver.ErrDriverIDRequired
	}

	var d *driver.Driver
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		d, err = s.drivers.GetByID(txCtx, driverID)
		return err
	})
	if err != nil {
		return ports.DriverQueueState{}, err
	}

	return ports.DriverQueueState{
		DriverID:       d.ID,
		IsOnline:       d.IsOnline,
		CurrentBooth:   d.CurrentBooth,
		QueuePosition:  d.QueuePosition,
		QueueEntryTime: d.QueueEntryTime,
		CurrentRideID:  d.CurrentRideID,
	}, nil
}
