package service

import (
	"context"
	"strings"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/ports"
)

// Repair runs the self-healing pass over one booth: drivers whose session
// outlived the TTL are swept offline, and positions are recomputed from
// entry times so any drift left by partial failures closes. Idempotent.
func (m *QueueManager) Repair(ctx context.Context, boothID string) (ports.RepairResult, error) {
	boothID = strings.TrimSpace(boothID)
	if boothID == "" {
		return ports.RepairResult{}, queue.ErrBoothRequired
	}

	corrID := generateCorrelationID()
	ctx = m.logger.WithRequestID(ctx, corrID)
	ctx = m.logger.WithBoothID(ctx, boothID)

	now := time.Now().UTC()
	date := queue.DateOf(now)
	cutoff := now.Add(-m.tuning.SessionTTL)

	var (
		result  ports.RepairResult
		updated *queue.BoothQueue
	)
	err := m.uow.WithinTx(ctx, func(txCtx context.Context) error {
		q, err := m.queues.GetForUpdate(txCtx, boothID, date)
		if err != nil {
			return err
		}

		drifted := q.CheckInvariant() != nil

		var swept int
		for _, driverID := range q.StaleBefore(cutoff) {
			if _, err := q.Remove(driverID); err != nil {
				return err
			}
			swept++

			d, err := m.drivers.GetByID(txCtx, driverID)
			if err != nil {
				if err == driver.ErrNotFound {
					continue
				}
				return err
			}
			d.GoOffline()
			if err := m.drivers.Save(txCtx, d); err != nil {
				return err
			}
		}

		q.Recompute()
		if drifted || swept > 0 {
			if err := m.queues.Save(txCtx, q); err != nil {
				return err
			}
			if err := m.syncQueuedDrivers(txCtx, q); err != nil {
				return err
			}
			updated = q
		}

		result = ports.RepairResult{
			BoothID:      boothID,
			Drifted:      drifted,
			SweptDrivers: swept,
			Entries:      q.Len(),
		}
		return nil
	})
	if err != nil {
		m.logger.Error(ctx, "queue_repair_failed", "repair pass failed", err, nil)
		return ports.RepairResult{}, err
	}

	if updated != nil {
		m.publishQueueUpdated(ctx, updated, corrID)
		m.logger.Info(ctx, "queue_repaired", "repair pass applied changes", result)
	}
	return result, nil
}

// RepairAll repairs every booth that has a queue document today.
func (m *QueueManager) RepairAll(ctx context.Context) ([]ports.RepairResult, error) {
	date := queue.DateOf(time.Now().UTC())

	var boothIDs []string
	err := m.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		boothIDs, err = m.queues.ListBoothIDs(txCtx, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]ports.RepairResult, 0, len(boothIDs))
	for _, boothID := range boothIDs {
		res, err := m.Repair(ctx, boothID)
		if err != nil {
			// keep going, one sick booth must not block the rest
			m.logger.Error(ctx, "queue_repair_skipped", "skipping booth after repair failure", err, map[string]any{
				"booth_id": boothID,
			})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// RunMaintenance blocks running the periodic repair loop until ctx is done.
func (m *QueueManager) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(m.tuning.RepairInterval)
	defer ticker.Stop()

	m.logger.Info(ctx, "maintenance_started", "queue maintenance loop running", map[string]any{
		"interval": m.tuning.RepairInterval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "maintenance_stopped", "queue maintenance loop stopped", nil)
			return
		case <-ticker.C:
			if _, err := m.RepairAll(ctx); err != nil {
				m.logger.Error(ctx, "maintenance_pass_failed", "periodic repair pass failed", err, nil)
			}
		}
	}
}
