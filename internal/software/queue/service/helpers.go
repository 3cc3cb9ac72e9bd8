package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/contracts"
)

// generateCorrelationID creates a lightweight correlation ID like
// "req_20251028T184523_ab12cd".
func generateCorrelationID() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("req_%s_%s", time.Now().UTC().Format("20060102T150405"), hex.EncodeToString(b))
}

// syncQueuedDrivers writes the positions held in the queue document back to
// each queued driver's projection row. Runs inside the caller's transaction.
func (m *QueueManager) syncQueuedDrivers(ctx context.Context, q *queue.BoothQueue) error {
	for _, e := range q.Entries {
		d, err := m.drivers.GetByID(ctx, e.DriverID)
		if err != nil {
			if err == driver.ErrNotFound {
				continue
			}
			return err
		}
		d.EnterQueue(q.BoothID, e.Position, e.EntryTime)
		if err := m.drivers.Save(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// publishQueueUpdated fans out the full queue snapshot and invalidates the
// cached copy. Publish failures are logged, never surfaced: the repair pass
// and version numbers let consumers converge regardless.
func (m *QueueManager) publishQueueUpdated(ctx context.Context, q *queue.BoothQueue, corrID string) {
	m.cache.InvalidateQueue(ctx, q.BoothID, q.Date)

	msg := contracts.QueueUpdatedMessage{
		BoothID: q.BoothID,
		Date:    q.Date,
		Version: q.Version,
		Entries: q.Snapshot(),
		Envelope: contracts.Envelope{
			CorrelationID: corrID,
			Producer:      "dispatch-service",
			SentAt:        time.Now().UTC(),
		},
	}
	if err := m.pub.Publish(ctx, contracts.ChannelBooths, ride.EventQueueUpdated, msg); err != nil {
		m.logger.Error(ctx, "queue_updated_publish_failed", "failed to publish queue update", err, map[string]any{
			"booth_id": q.BoothID,
			"version":  q.Version,
		})
	}
}
