package dispatchservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"booth-dispatch/internal/general/config"
	"booth-dispatch/internal/general/fanout"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/general/postgres"
	"booth-dispatch/internal/general/rabbitmq"
	"booth-dispatch/internal/general/rediscache"
	"booth-dispatch/internal/general/websocket"
	dispatchhandler "booth-dispatch/internal/software/dispatch/handler"
	dispatchservice "booth-dispatch/internal/software/dispatch/service"
	queuehandler "booth-dispatch/internal/software/queue/handler"
	queueservice "booth-dispatch/internal/software/queue/service"
)

// Run wires the dispatch service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	// set up a new logger and context with a static request ID for startup logs
	logger := logger.New("dispatch-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load a config from file
	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// set up a Postgres connection pool and apply the schema
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, logger); err != nil {
		logger.Error(ctx, "db_migration_failed", "Failed to apply database schema", err, nil)
		return err
	}

	// connect to RabbitMQ
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}

	// realtime fan-out: RabbitMQ for other services, websocket hub for consoles
	pub := rabbitmq.NewMQPublisher(rmq)
	hub := websocket.NewHub(logger)
	fan := fanout.NewMulti(pub, hub)

	// snapshot cache on Redis
	cache := rediscache.New(rediscache.NewClient(cfg.Redis.Addr), logger)

	// set up the necessary repos
	uow := postgres.NewUnitOfWork(pool)
	queueRepo := postgres.NewBoothQueueRepo()
	rideRepo := postgres.NewRideRepo()
	rideEventRepo := postgres.NewRideEventRepo()
	driverRepo := postgres.NewDriverRepo()

	// queue manager and dispatcher reference each other through ports:
	// the dispatcher pops/reinserts queue heads, the queue manager offers
	// joining drivers to waiting rides
	queueSvc := queueservice.NewQueueManager(logger, uow, queueRepo, driverRepo, fan, cache, queueservice.Tuning{
		SessionTTL:       cfg.Queue.SessionTTL,
		RepairInterval:   cfg.Queue.RepairInterval,
		SnapshotCacheTTL: cfg.Queue.SnapshotCacheTTL,
	})
	dispatchSvc := dispatchservice.NewDispatcher(logger, uow, rideRepo, rideEventRepo, driverRepo, queueSvc, fan)
	queueSvc.SetMatcher(dispatchSvc)

	// set up the HTTP handlers and their routes
	mux := http.NewServeMux()
	queuehandler.NewQueueHTTPHandler(queueSvc, logger, hub).RegisterRoutes(mux)
	dispatchhandler.NewRideHTTPHandler(dispatchSvc, logger).RegisterRoutes(mux)

	// concurrency limiter (global), blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.DispatchServicePort),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch Service started on port %d", cfg.Services.DispatchServicePort),
		map[string]any{"port": cfg.Services.DispatchServicePort, "max_concurrent": maxConcurrent},
	)

	g, gCtx := errgroup.WithContext(ctx)

	// periodic repair pass over all booth queues
	g.Go(func() error {
		queueSvc.RunMaintenance(gCtx)
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{
			"port": cfg.Services.DispatchServicePort,
		})
		return err
	}
	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
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
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
