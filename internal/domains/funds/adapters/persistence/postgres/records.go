package postgres

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Models lists the GORM models owned by this adapter, for schema migrations.
func Models() []any {
	return []any{&fundRecord{}, &holderRecord{}, &idempotencyRecord{}}
}

type fundRecord struct {
	Address                 string          `gorm:"primaryKey;column:address;size:42"`
	Name                    string          `gorm:"column:name"`
	Symbol                  string          `gorm:"column:symbol;size:32"`
	Manager                 string          `gorm:"column:manager;size:42;index"`
	Trader                  string          `gorm:"column:trader;size:42"`
	Supply                  string          `gorm:"column:supply;type:text"`
	Assets                  []assetColumn   `gorm:"column:assets;serializer:json"`
	PerformanceFee          uint64          `gorm:"column:performance_fee"`
	ManagementFee           uint64          `gorm:"column:management_fee"`
	EntryFee                uint64          `gorm:"column:entry_fee"`
	LastFeeMintTime         time.Time       `gorm:"column:last_fee_mint_time"`
	TokenPriceAtLastFeeMint string          `gorm:"column:token_price_at_last_fee_mint;type:text"`
	Proposal                *proposalColumn `gorm:"column:fee_proposal;serializer:json"`
	Members                 pq.StringArray  `gorm:"column:members;type:text[]"`
	MembershipCollections   pq.StringArray  `gorm:"column:membership_collections;type:text[]"`
	MinDepositUSD           string          `gorm:"column:min_deposit_usd;type:text"`
	OpenedAt                time.Time       `gorm:"column:opened_at;index"`
	SchemaVersion           int             `gorm:"column:schema_version"`
	CreatedAt               time.Time       `gorm:"column:created_at"`
	UpdatedAt               time.Time       `gorm:"column:updated_at"`
}

func (fundRecord) TableName() string { return "funds" }

type assetColumn struct {
	Asset     string `json:"asset"`
	IsDeposit bool   `json:"isDeposit"`
}

type proposalColumn struct {
	Performance uint64    `json:"performance"`
	Management  uint64    `json:"management"`
	Entry       uint64    `json:"entry"`
	AnnouncedAt time.Time `json:"announcedAt"`
}

type holderRecord struct {
	Fund            string    `gorm:"primaryKey;column:fund;size:42"`
	Holder          string    `gorm:"primaryKey;column:holder;size:42"`
	Balance         string    `gorm:"column:balance;type:text"`
	LastDepositTime time.Time `gorm:"column:last_deposit_time"`
	LastCooldown    uint64    `gorm:"column:last_cooldown"`
}

func (holderRecord) TableName() string { return "fund_holders" }

func newFundRecord(f *domain.Fund) fundRecord {
	rec := fundRecord{
		Address:                 f.Address.String(),
		Name:                    f.Name,
		Symbol:                  f.Symbol,
		Manager:                 f.Manager.String(),
		Supply:                  intString(f.Supply),
		PerformanceFee:          f.Fees.Performance,
		ManagementFee:           f.Fees.Management,
		EntryFee:                f.Fees.Entry,
		LastFeeMintTime:         f.Fees.LastFeeMintTime.UTC(),
		TokenPriceAtLastFeeMint: intString(f.Fees.TokenPriceAtLastFeeMint),
		Members:                 addressArray(f.MemberList()),
		MembershipCollections:   addressArray(f.MembershipCollections),
		MinDepositUSD:           intString(f.MinDepositUSD),
		OpenedAt:                f.CreatedAt.UTC(),
		SchemaVersion:           f.SchemaVersion,
	}
	if !f.Trader.IsZero() {
		rec.Trader = f.Trader.String()
	}
	for _, a := range f.Assets {
		rec.Assets = append(rec.Assets, assetColumn{Asset: a.Asset.String(), IsDeposit: a.IsDeposit})
	}
	if p := f.Fees.Proposal; p != nil {
		rec.Proposal = &proposalColumn{
			Performance: p.Numerators.Performance,
			Management:  p.Numerators.Management,
			Entry:       p.Numerators.Entry,
			AnnouncedAt: p.AnnouncedAt.UTC(),
		}
	}
	return rec
}

func newHolderRecords(f *domain.Fund) []holderRecord {
	out := make([]holderRecord, 0, len(f.Holders))
	for addr, h := range f.Holders {
		out = append(out, holderRecord{
			Fund:            f.Address.String(),
			Holder:          addr.String(),
			Balance:         intString(h.Balance),
			LastDepositTime: h.LastDepositTime.UTC(),
			LastCooldown:    h.LastCooldown,
		})
	}
	return out
}

func (r *fundRecord) toDomain(holders []holderRecord) (*domain.Fund, error) {
	var err error
	f := &domain.Fund{
		Name:          r.Name,
		Symbol:        r.Symbol,
		Holders:       make(map[address.Address]*domain.Holder, len(holders)),
		Members:       make(map[address.Address]bool, len(r.Members)),
		CreatedAt:     r.OpenedAt.UTC(),
		SchemaVersion: r.SchemaVersion,
	}
	if f.Address, err = address.Parse(r.Address); err != nil {
		return nil, err
	}
	if f.Manager, err = address.Parse(r.Manager); err != nil {
		return nil, err
	}
	if r.Trader != "" {
		if f.Trader, err = address.Parse(r.Trader); err != nil {
			return nil, err
		}
	}
	if f.Supply, err = parseInt("supply", r.Supply); err != nil {
		return nil, err
	}
	if f.MinDepositUSD, err = parseInt("min_deposit_usd", r.MinDepositUSD); err != nil {
		return nil, err
	}
	for _, a := range r.Assets {
		asset, err := address.Parse(a.Asset)
		if err != nil {
			return nil, err
		}
		f.Assets = append(f.Assets, domain.SupportedAsset{Asset: asset, IsDeposit: a.IsDeposit})
	}

	f.Fees = domain.FeeSchedule{
		FeeNumerators: domain.FeeNumerators{
			Performance: r.PerformanceFee,
			Management:  r.ManagementFee,
			Entry:       r.EntryFee,
		},
		LastFeeMintTime: r.LastFeeMintTime.UTC(),
	}
	if f.Fees.TokenPriceAtLastFeeMint, err = parseInt("token_price_at_last_fee_mint", r.TokenPriceAtLastFeeMint); err != nil {
		return nil, err
	}
	if p := r.Proposal; p != nil {
		f.Fees.Proposal = &domain.FeeProposal{
			Numerators:  domain.FeeNumerators{Performance: p.Performance, Management: p.Management, Entry: p.Entry},
			AnnouncedAt: p.AnnouncedAt.UTC(),
		}
	}

	members, err := address.ParseAll(r.Members)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		f.Members[m] = true
	}
	if len(r.MembershipCollections) > 0 {
		if f.MembershipCollections, err = address.ParseAll(r.MembershipCollections); err != nil {
			return nil, err
		}
	}

	for _, h := range holders {
		holder, err := address.Parse(h.Holder)
		if err != nil {
			return nil, err
		}
		balance, err := parseInt("balance", h.Balance)
		if err != nil {
			return nil, err
		}
		f.Holders[holder] = &domain.Holder{
			Balance:         balance,
			LastDepositTime: h.LastDepositTime.UTC(),
			LastCooldown:    h.LastCooldown,
		}
	}
	return f, nil
}

func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

func parseInt(column, s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("column %s: invalid integer %q", column, s)
	}
	return v, nil
}

func addressArray(list []address.Address) pq.StringArray {
	if len(list) == 0 {
		return nil
	}
	arr := make(pq.StringArray, 0, len(list))
	for _, a := range list {
		arr = append(arr, a.String())
	}
	return arr
}
