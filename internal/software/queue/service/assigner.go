package service

import (
	"context"
	"time"

	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
)

// PopHead removes and returns the head-of-queue driver for a vehicle class.
// It runs inside the caller's transaction so the ride assignment and queue
// removal commit together; the booth row lock taken here extends the
// single-writer guarantee to the dispatcher's pop.
func (m *QueueManager) PopHead(ctx context.Context, boothID string, class ride.VehicleClass, at time.Time) (string, error) {
	date := queue.DateOf(at)
	q, err := m.queues.GetForUpdate(ctx, boothID, date)
	if err != nil {
		return "", err
	}
	entry, err := q.PopClass(class)
	if err != nil {
		return "", err
	}
	if err := m.queues.Save(ctx, q); err != nil {
		return "", err
	}
	if err := m.syncQueuedDrivers(ctx, q); err != nil {
		return "", err
	}

	m.publishQueueUpdated(ctx, q, generateCorrelationID())
	return entry.DriverID, nil
}

// ReinsertHead puts a driver back at the front of the booth queue after a
// pre-pickup cancellation, preserving the seniority the driver had earned.
// Runs inside the caller's transaction.
func (m *QueueManager) ReinsertHead(ctx context.Context, boothID, driverID string, at time.Time) (int, error) {
	d, err := m.drivers.GetByID(ctx, driverID)
	if err != nil {
		return 0, err
	}
	d.ReleaseRide()
	if err := m.drivers.Save(ctx, d); err != nil {
		return 0, err
	}

	date := queue.DateOf(at)
	q, err := m.queues.GetForUpdate(ctx, boothID, date)
	if err != nil {
		return 0, err
	}
	pos, err := q.ReinsertHead(driverID, d.VehicleClass, at)
	if err != nil {
		return 0, err
	}
	if err := m.queues.Save(ctx, q); err != nil {
		return 0, err
	}
	// the sync picks up the reinserted driver's document entry, including
	// the clamped entry time that keeps repair from demoting it
	if err := m.syncQueuedDrivers(ctx, q); err != nil {
		return 0, err
	}

	m.publishQueueUpdated(ctx, q, generateCorrelationID())
	return pos, nil
}
