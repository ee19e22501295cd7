// cmd/jobboard/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_api "job-board/internal/api/http"
	"job-board/internal/config"
	"job-board/internal/domain"
	"job-board/internal/infra/gdrive"
	"job-board/internal/infra/postgres"
	"job-board/internal/infra/ratelimit"
	"job-board/internal/scheduler"
	"job-board/internal/tracing"
	"job-board/internal/usecase"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	otelgrpc "go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// corsMiddleware wraps an http.Handler with CORS headers for the browser client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	nodeID := uuid.New().String()
	logger = logger.With("node_id", nodeID)
	logger.Info("starting job board api node")

	tracerShutdown, err := tracing.InitTracer("job-board-api", nodeID, os.Stderr)
	if err != nil {
		fatal(logger, "failed to initialize tracer", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	backend, err := newLedgerBackend(rootCtx, cfg, nodeID, logger)
	if err != nil {
		fatal(logger, "failed to initialize ledger backend", err)
	}
	defer backend.close(context.Background())

	db, err := postgres.Open(rootCtx, postgres.Config{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DbMaxOpenConns,
		MaxIdleConns:    cfg.DbMaxIdleConns,
		ConnMaxIdle:     5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
		ReadyTimeout:    30 * time.Second,
	}, logger)
	if err != nil {
		fatal(logger, "failed to connect to postgres", err)
	}
	defer db.Close()
	backend.checks["postgres"] = db.PingContext

	blobs, err := gdrive.NewBlobStore(rootCtx, gdrive.Config{
		CredentialsPath: cfg.DriveCredentialsFile,
		Folders:         map[string]string{domain.ResumeFolder: cfg.DriveResumeFolderID},
	})
	if err != nil {
		fatal(logger, "failed to create drive blob store", err)
	}

	var limiter http_api.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		backend.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		limiter = ratelimit.NewRedisLimiter(rdb, "jobboard:ratelimit:", logger)
		logger.Info("using redis rate limiter", "addr", cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewLocalLimiter(10 * time.Minute)
		logger.Info("using in-process rate limiter")
	}

	identities := postgres.NewIdentityRepository(db)
	jobs := postgres.NewJobRepository(db)
	resolver := usecase.NewResumeResolver(blobs, cfg.UploadTimeout, logger)
	reclaimer := usecase.NewBlobReclaimer(blobs, backend.orphans, logger)
	applicationService := usecase.NewApplicationService(backend.apps, identities, jobs, resolver, reclaimer, backend.locker, logger)
	profileService := usecase.NewProfileService(identities, backend.apps, resolver, reclaimer, logger)

	janitor := usecase.NewJanitor(blobs, backend.orphans, backend.apps, logger)
	newScheduler := func() domain.Scheduler { return scheduler.NewCronScheduler(time.Minute, logger) }
	schedulerService := usecase.NewSchedulerService(backend.leader, newScheduler,
		janitor.Tasks(cfg.JanitorSchedule, cfg.StatsSchedule), nodeID, logger)

	tokens := http_api.NewTokenProvider(cfg.JwtSecret)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	http_api.NewApplicationHandler(applicationService, tokens, http_api.SubmitLimit{
		Limiter: limiter,
		Limit:   cfg.SubmitRateLimit,
		Window:  cfg.SubmitRateWindow,
	}, logger).RegisterRoutes(mux)
	http_api.NewProfileHandler(profileService, tokens, logger).RegisterRoutes(mux)
	http_api.RegisterHealth(mux, backend.checks)

	// Maintenance tasks run only while this node holds leadership.
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := schedulerService.Start(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler service stopped with error", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.GrpcListenAddr)
	if err != nil {
		fatal(logger, "failed to listen for grpc", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	go watchHealth(rootCtx, healthServer, backend.checks, logger)
	go func() {
		logger.Info("starting grpc health server", "addr", cfg.GrpcListenAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server failed", "error", err)
			cancel()
		}
	}()

	server := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting http api server", "addr", cfg.HttpListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// Block until shutdown.
	<-rootCtx.Done()
	logger.Info("shutting down application gracefully...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	<-schedulerDone

	logger.Info("application shut down")
}

// watchHealth mirrors the readiness checks onto the gRPC health service.
func watchHealth(ctx context.Context, hs *health.Server, checks map[string]http_api.HealthCheck, logger *slog.Logger) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(checkCtx); err != nil {
				logger.Warn("health check failed", "check", name, "error", err)
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		hs.SetServingStatus("", status)
	}

	update()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
