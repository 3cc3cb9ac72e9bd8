package service

import (
	"context"
	"strings"
	"time"

	"booth-dispatch/internal/domain/queue"
)

// Snapshot returns the position-ordered queue for a booth today. Reads are
// served from the snapshot cache when warm; a miss falls through to the
// store and refills the cache.
func (m *QueueManager) Snapshot(ctx context.Context, boothID string) (*queue.BoothQueue, error) {
	boothID = strings.TrimSpace(boothID)
	if boothID == "" {
		return nil, queue.ErrBoothRequired
	}
	date := queue.DateOf(time.Now().UTC())

	if q, ok := m.cache.GetQueue(ctx, boothID, date); ok {
		return q, nil
	}

	var q *queue.BoothQueue
	err := m.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		q, err = m.queues.Get(txCtx, boothID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.cache.SetQueue(ctx, q, m.tuning.SnapshotCacheTTL)
	return q, nil
}
