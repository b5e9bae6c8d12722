package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Pool bounds the connection pool. Zero values keep the database/sql defaults.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PoolFromEnv reads POSTGRES_MAX_OPEN_CONNS, POSTGRES_MAX_IDLE_CONNS and
// POSTGRES_CONN_MAX_LIFETIME. Malformed values are ignored.
func PoolFromEnv() Pool {
	var p Pool
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("POSTGRES_MAX_OPEN_CONNS"))); err == nil && n > 0 {
		p.MaxOpenConns = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("POSTGRES_MAX_IDLE_CONNS"))); err == nil && n >= 0 {
		p.MaxIdleConns = n
	}
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("POSTGRES_CONN_MAX_LIFETIME"))); err == nil && d > 0 {
		p.ConnMaxLifetime = d
	}
	return p
}

// Connect opens a PostgreSQL connection via GORM and verifies connectivity.
// Driver errors are translated so unique violations surface as gorm.ErrDuplicatedKey.
func Connect(ctx context.Context, dsn string, pool Pool) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// ConnectFromEnv dials PostgreSQL using POSTGRES_DSN and returns the DB plus a cleanup function.
// When POSTGRES_DSN is missing or the connection fails, it logs and returns nil with a no-op cleanup.
func ConnectFromEnv(ctx context.Context, logger *slog.Logger) (*gorm.DB, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		logger.Warn("POSTGRES_DSN not set, fund state stays in memory")
		return nil, func() {}
	}
	db, err := Connect(ctx, dsn, PoolFromEnv())
	if err != nil {
		logger.Warn("failed to connect to postgres, fund state stays in memory", slog.String("error", err.Error()))
		return nil, func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("failed to unwrap postgres connection, fund state stays in memory", slog.String("error", err.Error()))
		return nil, func() {}
	}
	logger.Info("postgres connection established")
	return db, func() { _ = sqlDB.Close() }
}
