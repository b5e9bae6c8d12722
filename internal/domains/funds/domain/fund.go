package domain

import (
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

const (
	// SchemaLegacy funds record the full cooldown on every deposit.
	SchemaLegacy = 1
	// SchemaCurrent funds use the proportional cooldown.
	SchemaCurrent = 2
)

// MinLiquidity is the smallest supply a fund may hold other than zero, and the
// smallest number of shares a deposit may mint.
var MinLiquidity = sdkmath.NewInt(100_000)

// Holder is the share balance and cooldown state of one address.
type Holder struct {
	Balance         sdkmath.Int
	LastDepositTime time.Time
	// LastCooldown is in whole seconds.
	LastCooldown uint64
}

// CooldownEndsAt is when the holder may withdraw or transfer again.
func (h Holder) CooldownEndsAt() time.Time {
	return h.LastDepositTime.Add(time.Duration(h.LastCooldown) * time.Second)
}

// SupportedAsset is an asset the fund may hold, in insertion order.
type SupportedAsset struct {
	Asset     address.Address
	IsDeposit bool
}

// Fund is the aggregate root of a custodial fund.
type Fund struct {
	Address               address.Address
	Name                  string
	Symbol                string
	Manager               address.Address
	Trader                address.Address
	Supply                sdkmath.Int
	Holders               map[address.Address]*Holder
	Assets                []SupportedAsset
	Fees                  FeeSchedule
	Members               map[address.Address]bool
	MembershipCollections []address.Address
	MinDepositUSD         sdkmath.Int
	CreatedAt             time.Time
	SchemaVersion         int

	events []Event
}

// NewFund validates and constructs a fund with an empty supply.
func NewFund(addr, manager address.Address, name, symbol string, assets []SupportedAsset, fees FeeNumerators, now time.Time) (*Fund, error) {
	if addr.IsZero() || manager.IsZero() {
		return nil, ErrInvalidFund.With("fund and manager addresses are required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidFund.With("name is required")
	}
	f := &Fund{
		Address:       addr,
		Name:          strings.TrimSpace(name),
		Symbol:        strings.TrimSpace(symbol),
		Manager:       manager,
		Supply:        sdkmath.ZeroInt(),
		Holders:       map[address.Address]*Holder{},
		Members:       map[address.Address]bool{},
		MinDepositUSD: sdkmath.ZeroInt(),
		CreatedAt:     now,
		SchemaVersion: SchemaCurrent,
		Fees: FeeSchedule{
			FeeNumerators:           fees,
			LastFeeMintTime:         now,
			TokenPriceAtLastFeeMint: Precision,
		},
	}
	for _, a := range assets {
		if f.IndexOf(a.Asset) >= 0 {
			return nil, ErrDuplicateAsset.With("%s", a.Asset)
		}
		f.Assets = append(f.Assets, a)
	}
	if !f.HasDepositAsset() {
		return nil, ErrNoDepositAsset
	}
	return f, nil
}

// BalanceOf returns the share balance of holder.
func (f *Fund) BalanceOf(holder address.Address) sdkmath.Int {
	if h, ok := f.Holders[holder]; ok {
		return h.Balance
	}
	return sdkmath.ZeroInt()
}

// Holder returns the state of holder, zero valued when unknown.
func (f *Fund) Holder(holder address.Address) Holder {
	if h, ok := f.Holders[holder]; ok {
		return *h
	}
	return Holder{Balance: sdkmath.ZeroInt()}
}

func (f *Fund) holder(addr address.Address) *Holder {
	h, ok := f.Holders[addr]
	if !ok {
		h = &Holder{Balance: sdkmath.ZeroInt()}
		f.Holders[addr] = h
	}
	return h
}

// Mint creates shares for to.
func (f *Fund) Mint(to address.Address, shares sdkmath.Int) {
	if shares.IsZero() {
		return
	}
	h := f.holder(to)
	h.Balance = h.Balance.Add(shares)
	f.Supply = f.Supply.Add(shares)
}

// Burn destroys shares owned by from.
func (f *Fund) Burn(from address.Address, shares sdkmath.Int) error {
	h := f.holder(from)
	if h.Balance.LT(shares) {
		return ErrInsufficientShares.With("%s holds %s", from, h.Balance)
	}
	h.Balance = h.Balance.Sub(shares)
	f.Supply = f.Supply.Sub(shares)
	return nil
}

// Move transfers shares between holders without touching cooldowns.
func (f *Fund) Move(from, to address.Address, shares sdkmath.Int) error {
	src := f.holder(from)
	if src.Balance.LT(shares) {
		return ErrInsufficientShares.With("%s holds %s", from, src.Balance)
	}
	dst := f.holder(to)
	src.Balance = src.Balance.Sub(shares)
	dst.Balance = dst.Balance.Add(shares)
	return nil
}

// RecordDeposit stores the cooldown computed for a deposit.
func (f *Fund) RecordDeposit(holder address.Address, cooldown uint64, at time.Time) {
	h := f.holder(holder)
	h.LastDepositTime = at
	h.LastCooldown = cooldown
}

// CheckCooldown fails with a timing error while holder is in cooldown.
func (f *Fund) CheckCooldown(holder address.Address, now time.Time) error {
	ends := f.Holder(holder).CooldownEndsAt()
	if now.Before(ends) {
		return ErrCooldownActive.WithTiming(ends)
	}
	return nil
}

// TotalBalances sums every holder balance.
func (f *Fund) TotalBalances() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, h := range f.Holders {
		total = total.Add(h.Balance)
	}
	return total
}

// IsManagerOrTrader reports whether addr may manage positions.
func (f *Fund) IsManagerOrTrader(addr address.Address) bool {
	return addr == f.Manager || (!f.Trader.IsZero() && addr == f.Trader)
}

// Migrate moves the fund to a newer storage schema.
func (f *Fund) Migrate(to int) error {
	if to <= f.SchemaVersion || to > SchemaCurrent {
		return ErrInvalidSchemaMigration.With("from %d to %d", f.SchemaVersion, to)
	}
	f.SchemaVersion = to
	return nil
}

// CooldownFor picks the cooldown formula gated by the schema version.
func (f *Fund) CooldownFor(in CooldownInput) uint64 {
	if f.SchemaVersion <= SchemaLegacy {
		return LegacyCooldown(in)
	}
	return Cooldown(in)
}

// Raise queues a domain event.
func (f *Fund) Raise(e Event) {
	f.events = append(f.events, e)
}

func (f *Fund) Events() []Event {
	return append([]Event(nil), f.events...)
}

func (f *Fund) ClearEvents() {
	f.events = nil
}

// Clone deep-copies the aggregate, without pending events.
func (f *Fund) Clone() *Fund {
	if f == nil {
		return nil
	}
	out := *f
	out.events = nil
	out.Holders = make(map[address.Address]*Holder, len(f.Holders))
	for k, v := range f.Holders {
		h := *v
		out.Holders[k] = &h
	}
	out.Assets = append([]SupportedAsset(nil), f.Assets...)
	out.Members = make(map[address.Address]bool, len(f.Members))
	for k, v := range f.Members {
		out.Members[k] = v
	}
	out.MembershipCollections = append([]address.Address(nil), f.MembershipCollections...)
	if f.Fees.Proposal != nil {
		p := *f.Fees.Proposal
		out.Fees.Proposal = &p
	}
	return &out
}

var _ AggregateWithEvents = (*Fund)(nil)
