package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"gorm.io/gorm"

	fundserver "github.com/Apurer/fund-ledger/go"
	"github.com/Apurer/fund-ledger/internal/app/ledger"
	fundsobs "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/observability"
	fundsworkflows "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/workflows"
	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/platform/migrations"
	platformobservability "github.com/Apurer/fund-ledger/internal/platform/observability"
	platformpostgres "github.com/Apurer/fund-ledger/internal/platform/postgres"
	"github.com/Apurer/fund-ledger/internal/platform/temporal/workers"
)

const serviceName = "fund-ledger-api"

// Run boots the fund ledger HTTP API with observability, storage, workflows
// and the scheduler wired. It returns when ctx is cancelled or the server fails.
func Run(ctx context.Context, cfg Config) error {
	instruments, shutdown, err := platformobservability.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	file, err := ledger.Load(cfg.LedgerConfig)
	if err != nil {
		return err
	}
	db, cleanupDB := buildDatabase(ctx, cfg, logger)
	defer cleanupDB()
	sys, err := ledger.Build(file, ledger.Options{DB: db, SQLitePath: cfg.SQLitePath})
	if err != nil {
		return fmt.Errorf("failed to build ledger: %w", err)
	}
	defer func() {
		if err := sys.Close(); err != nil {
			logger.Warn("failed to close ledger storage", slog.String("error", err.Error()))
		}
	}()
	if cfg.SQLitePath != "" {
		logger.Info("ledger events recorded to sqlite", slog.String("path", cfg.SQLitePath))
	}

	fundService := fundsobs.New(
		sys.Service,
		fundsobs.WithLogger(logger),
		fundsobs.WithTracer(instruments.Tracer("internal.funds.application")),
		fundsobs.WithMeter(instruments.Meter("internal.funds.application")),
	)

	var feeWorkflows fundsports.FeeWorkflows = fundsworkflows.NewInlineFeeWorkflows(fundService, sys.Governance)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, running fee timelock inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		feeWorkflows = fundsworkflows.NewTemporalFeeWorkflows(temporalClient, fundService, sys.Governance)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
		if cfg.TemporalWorker {
			w := workers.NewFeeWorker(temporalClient, fundService, worker.Options{})
			if err := w.Start(); err != nil {
				return fmt.Errorf("failed to start fee worker: %w", err)
			}
			defer w.Stop()
		}
	}

	scheduler := ledger.NewScheduler(ctx, sys.Oracle, fundService, feeWorkflows, logger)
	if err := scheduler.Register(cfg.ObserveCron, cfg.FeeMintCron); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	handlers := fundserver.ApiHandleFunctions{
		FundAPI:       fundserver.NewFundAPI(fundService, feeWorkflows),
		GovernanceAPI: fundserver.NewGovernanceAPI(sys.Governance, sys.Oracle, sys.Manual, sys.Clock),
	}
	router := fundserver.NewRouter(handlers)
	router.Use(otelgin.Middleware(serviceName))

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("fund ledger API listening", slog.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()
	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("fund ledger API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("fund ledger API shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

// buildDatabase connects to Postgres and migrates the schema. Without a DSN,
// or when the connection fails, fund state stays in memory.
func buildDatabase(ctx context.Context, cfg Config, logger *slog.Logger) (*gorm.DB, func()) {
	if cfg.PostgresDSN == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to in-memory fund repository")
		return nil, func() {}
	}
	db, err := platformpostgres.Connect(ctx, cfg.PostgresDSN, platformpostgres.PoolFromEnv())
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return nil, func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("failed to unwrap postgres connection, falling back to memory", slog.String("error", err.Error()))
		return nil, func() {}
	}
	if err := migrations.Run(db); err != nil {
		logger.Warn("failed to migrate postgres schema, falling back to memory", slog.String("error", err.Error()))
		_ = sqlDB.Close()
		return nil, func() {}
	}
	logger.Info("fund repository configured with postgres")
	return db, func() { _ = sqlDB.Close() }
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
