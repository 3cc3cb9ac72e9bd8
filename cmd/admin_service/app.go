package adminservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"booth-dispatch/internal/general/config"
	"booth-dispatch/internal/general/fanout"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/general/postgres"
	"booth-dispatch/internal/general/rediscache"
	adminhandler "booth-dispatch/internal/software/adminboard/handler"
	adminservice "booth-dispatch/internal/software/adminboard/service"
	queueservice "booth-dispatch/internal/software/queue/service"
)

// Run wires the read-only admin service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	logger := logger.New("admin-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

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
	queueRepo := postgres.NewBoothQueueRepo()
	rideRepo := postgres.NewRideRepo()
	driverRepo := postgres.NewDriverRepo()

	// the queue manager here serves reads only; no matcher, no publishing
	// targets beyond a no-op fan-out
	queueSvc := queueservice.NewQueueManager(logger, uow, queueRepo, driverRepo, fanout.NewMulti(), cache, queueservice.Tuning{
		SessionTTL:       cfg.Queue.SessionTTL,
		RepairInterval:   cfg.Queue.RepairInterval,
		SnapshotCacheTTL: cfg.Queue.SnapshotCacheTTL,
	})
	adminSvc := adminservice.NewAdminBoard(logger, uow, queueSvc, rideRepo, driverRepo)

	mux := http.NewServeMux()
	adminhandler.NewAdminHTTPHandler(adminSvc, logger).RegisterRoutes(mux)

	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.AdminServicePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Admin Service started on port %d", cfg.Services.AdminServicePort),
		map[string]any{"port": cfg.Services.AdminServicePort, "max_concurrent": maxConcurrent},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{
				"port": cfg.Services.AdminServicePort,
			})
			return err
		}
	}
	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
