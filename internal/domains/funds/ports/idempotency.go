package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// ErrIdempotencyConflict indicates the same key was used with a different request.
var ErrIdempotencyConflict = errors.New("idempotency conflict")

// IdempotencyRecord associates a client key with the receipt of the first request.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Fund        address.Address
	Response    []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IdempotencyStore persists idempotency keys so retried deposits replay their receipt.
type IdempotencyStore interface {
	// Get returns the stored record for the key, or nil when unknown.
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	// Save persists the record. A key already stored with the same hash returns
	// the stored record; a different hash returns ErrIdempotencyConflict.
	Save(ctx context.Context, record IdempotencyRecord) (*IdempotencyRecord, error)
}
