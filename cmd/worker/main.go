package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/Apurer/fund-ledger/internal/app/ledger"
	fundsobs "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/observability"
	"github.com/Apurer/fund-ledger/internal/platform/migrations"
	platformobservability "github.com/Apurer/fund-ledger/internal/platform/observability"
	platformpostgres "github.com/Apurer/fund-ledger/internal/platform/postgres"
	"github.com/Apurer/fund-ledger/internal/platform/temporal/workers"
	feeworkflows "github.com/Apurer/fund-ledger/internal/platform/temporal/workflows/funds"
)

// The standalone worker shares fund state with the API through Postgres only.
// Custody balances live in each process, so deployments that move assets
// during fee mints run the worker inside the API (TEMPORAL_WORKER=true).
func main() {
	ctx := context.Background()
	const serviceName = "fund-ledger-worker"
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	file, err := ledger.Load(envOrDefault("LEDGER_CONFIG", "config/ledger.yaml"))
	if err != nil {
		logger.Error("failed to load ledger config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	db, cleanupDB := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanupDB()
	if err := migrations.Run(db); err != nil {
		logger.Error("failed to migrate postgres schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sys, err := ledger.Build(file, ledger.Options{DB: db, SQLitePath: os.Getenv("SQLITE_PATH")})
	if err != nil {
		logger.Error("failed to build ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sys.Close()
	fundService := fundsobs.New(
		sys.Service,
		fundsobs.WithLogger(logger),
		fundsobs.WithTracer(instruments.Tracer("internal.funds.application")),
		fundsobs.WithMeter(instruments.Meter("internal.funds.application")),
	)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  envOrDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: envOrDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := workers.NewFeeWorker(temporalClient, fundService, worker.Options{})
	logger.Info("worker listening", slog.String("taskQueue", feeworkflows.FeesTaskQueue), slog.String("namespace", clientOptions.Namespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
