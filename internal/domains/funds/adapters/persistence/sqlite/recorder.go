package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var _ ports.EventRecorder = (*Recorder)(nil)

type fundEvent interface {
	FundAddress() address.Address
}

// Recorder appends ledger events to a SQLite audit log.
type Recorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	r := &Recorder{db: db, logger: slog.Default()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Recorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_events (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			fund        TEXT NOT NULL,
			name        TEXT NOT NULL,
			occurred_at INTEGER NOT NULL,
			payload     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_fund ON ledger_events(fund, seq)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) Record(ctx context.Context, events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_events (id, fund, name, occurred_at, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.EventName(), err)
		}
		fund := ""
		if fe, ok := e.(fundEvent); ok {
			fund = fe.FundAddress().String()
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), fund, e.EventName(), e.OccurredAt().UnixNano(), string(payload)); err != nil {
			return fmt.Errorf("insert %s: %w", e.EventName(), err)
		}
	}
	return tx.Commit()
}

func (r *Recorder) History(ctx context.Context, fund address.Address, limit int) ([]ports.RecordedEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, fund, name, occurred_at, payload FROM ledger_events WHERE fund = ? ORDER BY seq DESC LIMIT ?`,
		fund.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ports.RecordedEvent
	for rows.Next() {
		var (
			rec      ports.RecordedEvent
			fundHex  string
			occurred int64
			payload  string
		)
		if err := rows.Scan(&rec.ID, &fundHex, &rec.Name, &occurred, &payload); err != nil {
			return nil, err
		}
		if rec.Fund, err = address.Parse(fundHex); err != nil {
			return nil, err
		}
		rec.OccurredAt = time.Unix(0, occurred).UTC()
		rec.Payload = []byte(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetLogger replaces the logger used for snapshot failures.
func (r *Recorder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Snapshot captures the last sequence number; the returned func deletes
// everything recorded after it. When the capture fails the restore is a no-op
// so the existing log is never truncated.
func (r *Recorder) Snapshot() func() {
	r.mu.Lock()
	var last int64
	err := r.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM ledger_events`).Scan(&last)
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn("ledger event snapshot failed, rollback will keep recorded events", slog.String("error", err.Error()))
		return func() {}
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, err := r.db.Exec(`DELETE FROM ledger_events WHERE seq > ?`, last); err != nil {
			r.logger.Error("ledger event rollback failed", slog.Int64("after_seq", last), slog.String("error", err.Error()))
		}
	}
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
