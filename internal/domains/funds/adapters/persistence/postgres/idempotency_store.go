package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore persists deposit idempotency keys in PostgreSQL.
type IdempotencyStore struct {
	db *gorm.DB
}

// NewIdempotencyStore wires a PostgreSQL-backed idempotency store.
func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Get loads a record by key, returning nil when absent.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record idempotencyRecord
	if err := conn(ctx, s.db).First(&record, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toPortRecord(&record)
}

// Save inserts the record; if the key already exists with the same hash and fund it is
// returned, otherwise ErrIdempotencyConflict is returned with the stored record.
// The insert does not fail on conflict so a surrounding transaction stays usable.
func (s *IdempotencyStore) Save(ctx context.Context, record ports.IdempotencyRecord) (*ports.IdempotencyRecord, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	dbRecord := toDBRecord(record)
	result := conn(ctx, s.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&dbRecord)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		return toPortRecord(&dbRecord)
	}
	existing, err := s.Get(ctx, record.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("idempotency key vanished after conflict")
	}
	if existing.RequestHash != record.RequestHash || existing.Fund != record.Fund {
		return existing, ports.ErrIdempotencyConflict
	}
	return existing, nil
}

func (s *IdempotencyStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres idempotency store not configured")
	}
	return nil
}

type idempotencyRecord struct {
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128"`
	Fund        string    `gorm:"column:fund;size:42;index"`
	Response    []byte    `gorm:"column:response;type:bytea"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (idempotencyRecord) TableName() string { return "deposit_idempotency_keys" }

func toDBRecord(rec ports.IdempotencyRecord) idempotencyRecord {
	return idempotencyRecord{
		Key:         rec.Key,
		RequestHash: rec.RequestHash,
		Fund:        rec.Fund.String(),
		Response:    rec.Response,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toPortRecord(rec *idempotencyRecord) (*ports.IdempotencyRecord, error) {
	fund, err := address.Parse(rec.Fund)
	if err != nil {
		return nil, err
	}
	return &ports.IdempotencyRecord{
		Key:         rec.Key,
		RequestHash: rec.RequestHash,
		Fund:        fund,
		Response:    rec.Response,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}
