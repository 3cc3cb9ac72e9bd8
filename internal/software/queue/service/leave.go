package service

import (
	"context"
	"strings"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
)

// Leave removes a driver from a booth's queue. Positions behind the leaver
// compact so the permutation stays contiguous.
func (m *QueueManager) Leave(ctx context.Context, boothID, driverID string) error {
	boothID = strings.TrimSpace(boothID)
	driverID = strings.TrimSpace(driverID)
	if boothID == "" {
		return queue.ErrBoothRequired
	}
	if driverID == "" {
		return queue.ErrDriverRequired
	}

	corrID := generateCorrelationID()
	ctx = m.logger.WithRequestID(ctx, corrID)
	ctx = m.logger.WithBoothID(ctx, boothID)

	date := queue.DateOf(time.Now().UTC())

	var updated *queue.BoothQueue
	err := m.uow.WithinTx(ctx, func(txCtx context.Context) error {
		q, err := m.queues.GetForUpdate(txCtx, boothID, date)
		if err != nil {
			return err
		}
		if _, err := q.Remove(driverID); err != nil {
			return err
		}
		if err := m.queues.Save(txCtx, q); err != nil {
			return err
		}
		if err := m.syncQueuedDrivers(txCtx, q); err != nil {
			return err
		}

		d, err := m.drivers.GetByID(txCtx, driverID)
		if err != nil {
			if err == driver.ErrNotFound {
				updated = q
				return nil
			}
			return err
		}
		d.LeaveQueue()
		if err := m.drivers.Save(txCtx, d); err != nil {
			return err
		}
		updated = q
		return nil
	})
	if err != nil {
		m.logger.Error(ctx, "queue_leave_failed", "driver failed to leave queue", err, map[string]any{
			"driver_id": driverID,
		})
		return err
	}

	m.publishQueueUpdated(ctx, updated, corrID)
	m.logger.Info(ctx, "queue_left", "driver left booth queue", map[string]any{
		"driver_id": driverID,
	})
	return nil
}
