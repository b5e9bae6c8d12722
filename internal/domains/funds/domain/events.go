package domain

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Event is the base interface for all fund events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	Timestamp time.Time
	Fund      address.Address
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// FundAddress returns the fund the event belongs to.
func (e BaseEvent) FundAddress() address.Address {
	return e.Fund
}

// FundCreated is raised once when a fund is created.
type FundCreated struct {
	BaseEvent
	Manager address.Address
	Name    string
	Symbol  string
	Assets  []SupportedAsset
	Fees    FeeNumerators
}

func (e FundCreated) EventName() string { return "funds.fund.created" }

// Deposited records a deposit and the resulting totals.
type Deposited struct {
	BaseEvent
	Depositor      address.Address
	Recipient      address.Address
	Asset          address.Address
	Amount         sdkmath.Int
	ValueDeposited sdkmath.Int
	Shares         sdkmath.Int
	EntryFeeShares sdkmath.Int
	FundValue      sdkmath.Int
	TotalSupply    sdkmath.Int
	Cooldown       uint64
}

func (e Deposited) EventName() string { return "funds.fund.deposited" }

// WithdrawnAsset is one line of a withdrawal record.
type WithdrawnAsset struct {
	Asset    address.Address
	Amount   sdkmath.Int
	Value    sdkmath.Int
	External bool
}

// Withdrawn enumerates every asset sent out for burned shares.
type Withdrawn struct {
	BaseEvent
	Holder         address.Address
	Recipient      address.Address
	Shares         sdkmath.Int
	ValueWithdrawn sdkmath.Int
	Assets         []WithdrawnAsset
	FundValue      sdkmath.Int
	TotalSupply    sdkmath.Int
}

func (e Withdrawn) EventName() string { return "funds.fund.withdrawn" }

// SharesTransferred is a holder to holder share movement.
type SharesTransferred struct {
	BaseEvent
	From   address.Address
	To     address.Address
	Shares sdkmath.Int
}

func (e SharesTransferred) EventName() string { return "funds.shares.transferred" }

// ManagerFeeMinted records accrued fees minted to the manager and treasury.
type ManagerFeeMinted struct {
	BaseEvent
	Manager          address.Address
	ManagerShares    sdkmath.Int
	Treasury         address.Address
	ProtocolShares   sdkmath.Int
	TokenPrice       sdkmath.Int
	TokenPriceAtMint sdkmath.Int
}

func (e ManagerFeeMinted) EventName() string { return "funds.fee.minted" }

// TransactionExecuted tags an authorized external call for accounting.
type TransactionExecuted struct {
	BaseEvent
	Caller   address.Address
	Target   address.Address
	Guard    string
	OpTag    string
	Public   bool
	Selector string
}

func (e TransactionExecuted) EventName() string { return "funds.transaction.executed" }

// AssetsChanged lists the supported-asset set after a change.
type AssetsChanged struct {
	BaseEvent
	Added   []SupportedAsset
	Removed []address.Address
	Assets  []SupportedAsset
}

func (e AssetsChanged) EventName() string { return "funds.assets.changed" }

type FeeIncreaseAnnounced struct {
	BaseEvent
	Proposed FeeNumerators
	ValidAt  time.Time
}

func (e FeeIncreaseAnnounced) EventName() string { return "funds.fee.increase_announced" }

type FeeIncreaseCommitted struct {
	BaseEvent
	Fees FeeNumerators
}

func (e FeeIncreaseCommitted) EventName() string { return "funds.fee.increase_committed" }

type FeeIncreaseRenounced struct {
	BaseEvent
}

func (e FeeIncreaseRenounced) EventName() string { return "funds.fee.increase_renounced" }

// FeesChanged is an immediate fee change.
type FeesChanged struct {
	BaseEvent
	Previous FeeNumerators
	Fees     FeeNumerators
}

func (e FeesChanged) EventName() string { return "funds.fee.changed" }

type MembersChanged struct {
	BaseEvent
	Added       []address.Address
	Removed     []address.Address
	Collections []address.Address
}

func (e MembersChanged) EventName() string { return "funds.members.changed" }

type ManagerChanged struct {
	BaseEvent
	Previous address.Address
	Manager  address.Address
}

func (e ManagerChanged) EventName() string { return "funds.manager.changed" }

type TraderChanged struct {
	BaseEvent
	Trader address.Address
}

func (e TraderChanged) EventName() string { return "funds.trader.changed" }

type MinDepositChanged struct {
	BaseEvent
	MinDepositUSD sdkmath.Int
}

func (e MinDepositChanged) EventName() string { return "funds.min_deposit.changed" }

// FundMigrated records a storage schema upgrade.
type FundMigrated struct {
	BaseEvent
	From int
	To   int
}

func (e FundMigrated) EventName() string { return "funds.fund.migrated" }

// AggregateWithEvents is implemented by aggregates that track domain events.
type AggregateWithEvents interface {
	Events() []Event
	ClearEvents()
}
