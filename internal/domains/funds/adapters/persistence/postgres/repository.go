package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/projection"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists funds and their holders in PostgreSQL using GORM-mapped columns.
// Amounts are stored as decimal strings so no precision is lost.
type Repository struct {
	db *gorm.DB
}

// NewRepository wires a PostgreSQL-backed repository. The caller owns the DB lifecycle
// and runs the schema migrations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save upserts the fund row and replaces its holder rows.
func (r *Repository) Save(ctx context.Context, fund *domain.Fund) (*projection.Projection[*domain.Fund], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, errors.New("cannot save nil fund")
	}
	record := newFundRecord(fund)
	holders := newHolderRecords(fund)
	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{
				"name":                         record.Name,
				"symbol":                       record.Symbol,
				"manager":                      record.Manager,
				"trader":                       record.Trader,
				"supply":                       record.Supply,
				"assets":                       gorm.Expr("EXCLUDED.assets"),
				"performance_fee":              record.PerformanceFee,
				"management_fee":               record.ManagementFee,
				"entry_fee":                    record.EntryFee,
				"last_fee_mint_time":           record.LastFeeMintTime,
				"token_price_at_last_fee_mint": record.TokenPriceAtLastFeeMint,
				"fee_proposal":                 gorm.Expr("EXCLUDED.fee_proposal"),
				"members":                      record.Members,
				"membership_collections":       record.MembershipCollections,
				"min_deposit_usd":              record.MinDepositUSD,
				"schema_version":               record.SchemaVersion,
				"updated_at":                   gorm.Expr("NOW()"),
			}),
		}).Create(&record).Error; err != nil {
			return err
		}
		if err := tx.Where("fund = ?", record.Address).Delete(&holderRecord{}).Error; err != nil {
			return err
		}
		if len(holders) == 0 {
			return nil
		}
		return tx.CreateInBatches(holders, 200).Error
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, fund.Address)
}

func (r *Repository) Get(ctx context.Context, fund address.Address) (*projection.Projection[*domain.Fund], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	db := conn(ctx, r.db)
	var record fundRecord
	if err := db.First(&record, "address = ?", fund.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	var holders []holderRecord
	if err := db.Where("fund = ?", record.Address).Find(&holders).Error; err != nil {
		return nil, err
	}
	return toProjection(&record, holders)
}

// List returns every fund ordered by opening time.
func (r *Repository) List(ctx context.Context) ([]*projection.Projection[*domain.Fund], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	db := conn(ctx, r.db)
	var records []fundRecord
	if err := db.Order("opened_at, address").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	var holders []holderRecord
	if err := db.Order("fund").Find(&holders).Error; err != nil {
		return nil, err
	}
	byFund := make(map[string][]holderRecord, len(records))
	for _, h := range holders {
		byFund[h.Fund] = append(byFund[h.Fund], h)
	}
	list := make([]*projection.Projection[*domain.Fund], 0, len(records))
	for i := range records {
		p, err := toProjection(&records[i], byFund[records[i].Address])
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, nil
}

func toProjection(record *fundRecord, holders []holderRecord) (*projection.Projection[*domain.Fund], error) {
	fund, err := record.toDomain(holders)
	if err != nil {
		return nil, err
	}
	return projection.New(fund, projection.Metadata{CreatedAt: record.CreatedAt, UpdatedAt: record.UpdatedAt}), nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres repository not configured")
	}
	return nil
}
