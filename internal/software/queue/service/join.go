package service

import (
	"context"
	"strings"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/ports"
)

// Join adds a driver to a booth's queue. Before enqueueing, the driver is
// offered to the longest-waiting unmatched ride request at the booth; when
// one matches, the driver goes straight onto the ride and never appears in
// the queue.
func (m *QueueManager) Join(ctx context.Context, in ports.JoinQueueInput) (ports.JoinQueueResult, error) {
	in.BoothID = strings.TrimSpace(in.BoothID)
	in.DriverID = strings.TrimSpace(in.DriverID)
	if in.BoothID == "" {
		return ports.JoinQueueResult{}, queue.ErrBoothRequired
	}
	if in.DriverID == "" {
		return ports.JoinQueueResult{}, queue.ErrDriverRequired
	}

	corrID := generateCorrelationID()
	ctx = m.logger.WithRequestID(ctx, corrID)
	ctx = m.logger.WithBoothID(ctx, in.BoothID)

	now := time.Now().UTC()
	date := queue.DateOf(now)

	var (
		result  ports.JoinQueueResult
		updated *queue.BoothQueue
	)
	err := m.uow.WithinTx(ctx, func(txCtx context.Context) error {
		d, err := m.drivers.GetByID(txCtx, in.DriverID)
		if err == driver.ErrNotFound {
			d, err = driver.New(in.DriverID, in.VehicleClass)
		}
		if err != nil {
			return err
		}
		if d.CurrentRideID != nil {
			return driver.ErrOnActiveRide
		}
		if d.QueuePosition != nil {
			// queued somewhere already, possibly at another booth
			return queue.ErrAlreadyQueued
		}
		d.VehicleClass = in.VehicleClass
		d.IsOnline = true

		if m.matcher != nil {
			rideID, err := m.matcher.AssignWaiting(txCtx, in.BoothID, in.DriverID, in.VehicleClass)
			if err != nil {
				return err
			}
			if rideID != "" {
				d.CurrentBooth = &in.BoothID
				d.AssignRide(rideID)
				if err := m.drivers.Upsert(txCtx, d); err != nil {
					return err
				}
				result = ports.JoinQueueResult{
					BoothID: in.BoothID,
					RideID:  rideID,
					Message: "matched to a waiting ride request",
				}
				return nil
			}
		}

		q, err := m.queues.GetForUpdate(txCtx, in.BoothID, date)
		if err != nil {
			return err
		}
		pos, err := q.Append(in.DriverID, in.VehicleClass, now)
		if err != nil {
			return err
		}
		if err := m.queues.Save(txCtx, q); err != nil {
			return err
		}
		d.EnterQueue(in.BoothID, pos, now)
		if err := m.drivers.Upsert(txCtx, d); err != nil {
			return err
		}

		updated = q
		result = ports.JoinQueueResult{
			BoothID:  in.BoothID,
			Position: pos,
			Message:  "joined booth queue",
		}
		return nil
	})
	if err != nil {
		m.logger.Error(ctx, "queue_join_failed", "driver failed to join queue", err, map[string]any{
			"driver_id": in.DriverID,
		})
		return ports.JoinQueueResult{}, err
	}

	if updated != nil {
		m.publishQueueUpdated(ctx, updated, corrID)
	}
	m.logger.Info(ctx, "queue_joined", "driver join processed", map[string]any{
		"driver_id": in.DriverID,
		"position":  result.Position,
		"ride_id":   result.RideID,
	})
	return result, nil
}
