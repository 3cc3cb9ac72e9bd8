package repairtool

import (
	"context"
	"fmt"
	"os"

	"booth-dispatch/internal/general/config"
	"booth-dispatch/internal/general/fanout"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/general/postgres"
	"booth-dispatch/internal/general/rediscache"
	queueservice "booth-dispatch/internal/software/queue/service"
)

// Run performs a one-shot repair pass over every booth queue and prints a
// per-booth summary. Intended for operators; the dispatch service runs the
// same pass periodically on its own.
func Run(ctx context.Context) error {
	logger := logger.New("repair-tool")
	ctx = logger.WithRequestID(ctx, "repair-001")

	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	cache := rediscache.New(rediscache.NewClient(cfg.Redis.Addr), logger)

	uow := postgres.NewUnitOfWork(pool)
	queueSvc := queueservice.NewQueueManager(
		logger, uow,
		postgres.NewBoothQueueRepo(), postgres.NewDriverRepo(),
		fanout.NewMulti(), cache,
		queueservice.Tuning{
			SessionTTL:       cfg.Queue.SessionTTL,
			RepairInterval:   cfg.Queue.RepairInterval,
			SnapshotCacheTTL: cfg.Queue.SnapshotCacheTTL,
		},
	)

	results, err := queueSvc.RepairAll(ctx)
	if err != nil {
		logger.Error(ctx, "repair_failed", "Repair pass failed", err, nil)
		return err
	}

	for _, res := range results {
		fmt.Fprintf(os.Stdout, "booth=%s entries=%d drifted=%v swept=%d\n",
			res.BoothID, res.Entries, res.Drifted, res.SweptDrivers)
	}
	logger.Info(ctx, "repair_finished", "Repair pass completed", map[string]any{"booths": len(results)})
	return nil
}
