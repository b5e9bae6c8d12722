package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Apurer/fund-ledger/internal/app/ledger"
	"github.com/Apurer/fund-ledger/internal/platform/migrations"
	platformobservability "github.com/Apurer/fund-ledger/internal/platform/observability"
	platformpostgres "github.com/Apurer/fund-ledger/internal/platform/postgres"
)

// fee-sweeper mints accrued manager fees for every fund once and exits.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: platformobservability.ParseLevel(os.Getenv("LOG_LEVEL"))}))
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		log.Fatal("POSTGRES_DSN not set or connection failed; nothing to sweep")
	}
	if err := migrations.Run(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	path := strings.TrimSpace(os.Getenv("LEDGER_CONFIG"))
	if path == "" {
		path = "config/ledger.yaml"
	}
	file, err := ledger.Load(path)
	if err != nil {
		log.Fatalf("failed to load ledger config: %v", err)
	}
	sys, err := ledger.Build(file, ledger.Options{DB: db})
	if err != nil {
		log.Fatalf("failed to build ledger: %v", err)
	}
	defer sys.Close()

	result, err := ledger.SweepManagerFees(ctx, sys.Service, sys.Service, logger)
	if err != nil {
		log.Fatalf("fee sweep finished with errors: %v", err)
	}
	log.Printf("fee sweep completed: funds=%d minted=%d skipped=%d", result.Funds, result.Minted, result.Skipped)
}
