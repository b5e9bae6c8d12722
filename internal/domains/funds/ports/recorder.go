package ports

import (
	"context"
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// RecordedEvent is a persisted ledger event.
type RecordedEvent struct {
	ID         string
	Fund       address.Address
	Name       string
	OccurredAt time.Time
	Payload    []byte
}

// EventRecorder appends ledger events to the audit log.
type EventRecorder interface {
	Record(ctx context.Context, events ...domain.Event) error
	// History returns the newest events of fund first, at most limit.
	History(ctx context.Context, fund address.Address, limit int) ([]RecordedEvent, error)
}
