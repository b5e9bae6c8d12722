package sqlite

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var (
	fundA = address.MustParse("0x00000000000000000000000000000000000f0001")
	fundB = address.MustParse("0x00000000000000000000000000000000000f0002")
	alice = address.MustParse("0x0000000000000000000000000000000000000002")
	t0    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func openRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func deposited(fund address.Address, at time.Time) domain.Deposited {
	return domain.Deposited{
		BaseEvent: domain.BaseEvent{Timestamp: at, Fund: fund},
		Recipient: alice,
		Shares:    sdkmath.NewInt(1_000_000),
	}
}

func TestRecorder_HistoryIsNewestFirstPerFund(t *testing.T) {
	r := openRecorder(t)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx,
		domain.FundCreated{BaseEvent: domain.BaseEvent{Timestamp: t0, Fund: fundA}, Name: "Alpha"},
		deposited(fundA, t0.Add(time.Minute)),
		deposited(fundB, t0.Add(2*time.Minute)),
	))

	history, err := r.History(ctx, fundA, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "funds.fund.deposited", history[0].Name)
	assert.Equal(t, "funds.fund.created", history[1].Name)
	assert.Equal(t, t0.Add(time.Minute), history[0].OccurredAt)
	assert.Equal(t, fundA, history[0].Fund)
	assert.Contains(t, string(history[0].Payload), `"1000000"`)

	limited, err := r.History(ctx, fundA, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecorder_SnapshotRestoreDropsLaterEvents(t *testing.T) {
	r := openRecorder(t)
	ctx := context.Background()
	require.NoError(t, r.Record(ctx, deposited(fundA, t0)))

	restore := r.Snapshot()
	require.NoError(t, r.Record(ctx, deposited(fundA, t0.Add(time.Hour))))
	restore()

	history, err := r.History(ctx, fundA, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, t0, history[0].OccurredAt)
}

func TestRecorder_FailedSnapshotKeepsTheLog(t *testing.T) {
	r := openRecorder(t)
	ctx := context.Background()
	var logs bytes.Buffer
	r.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, r.Record(ctx, deposited(fundA, t0)))

	_, err := r.db.Exec(`ALTER TABLE ledger_events RENAME TO ledger_events_moved`)
	require.NoError(t, err)
	restore := r.Snapshot()
	_, err = r.db.Exec(`ALTER TABLE ledger_events_moved RENAME TO ledger_events`)
	require.NoError(t, err)

	require.NoError(t, r.Record(ctx, deposited(fundA, t0.Add(time.Hour))))
	restore()

	history, err := r.History(ctx, fundA, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Contains(t, logs.String(), "snapshot failed")
}

func TestRecorder_RestoreFailureIsLogged(t *testing.T) {
	r := openRecorder(t)
	var logs bytes.Buffer
	r.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	restore := r.Snapshot()
	require.NoError(t, r.Close())
	restore()

	assert.Contains(t, logs.String(), "rollback failed")
}
