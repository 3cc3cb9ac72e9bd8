package service

import (
	"time"

	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/ports"
)

// Tuning holds the queue manager's time knobs, copied from config.
type Tuning struct {
	SessionTTL       time.Duration
	RepairInterval   time.Duration
	SnapshotCacheTTL time.Duration
}

// QueueManager is the booth queue service. Every mutating operation runs
// inside a unit of work that locks the booth's queue document row, which
// is the single-writer-per-booth discipline: writes to one booth are
// strictly serialized while different booths proceed in parallel.
//
// It implements ports.QueueService and ports.QueueAssigner.
type QueueManager struct {
	logger  *logger.Logger
	uow     ports.UnitOfWork
	queues  ports.BoothQueueRepository
	drivers ports.DriverRepository
	pub     ports.EventPublisher
	cache   ports.SnapshotCache
	tuning  Tuning

	// matcher is set after construction to break the dispatcher/queue
	// construction cycle; nil disables reassignment-on-join (tests).
	matcher ports.PendingRideMatcher
}

func NewQueueManager(
	log *logger.Logger,
	uow ports.UnitOfWork,
	queues ports.BoothQueueRepository,
	drivers ports.DriverRepository,
	pub ports.EventPublisher,
	cache ports.SnapshotCache,
	tuning Tuning,
) *QueueManager {
	return &QueueManager{
		logger:  log,
		uow:     uow,
		queues:  queues,
		drivers: drivers,
		pub:     pub,
		cache:   cache,
		tuning:  tuning,
	}
}

// SetMatcher wires the dispatcher's reassignment-on-join hook.
func (m *QueueManager) SetMatcher(matcher ports.PendingRideMatcher) {
	m.matcher = matcher
}
