package types

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/projection"
)

// FundProjection transports the fund aggregate with persistence metadata.
type FundProjection = projection.Projection[*domain.Fund]

// DepositReceipt is the outcome of a deposit.
type DepositReceipt struct {
	Fund           address.Address `json:"fund"`
	Recipient      address.Address `json:"recipient"`
	Asset          address.Address `json:"asset"`
	Amount         sdkmath.Int     `json:"amount"`
	ValueDeposited sdkmath.Int     `json:"valueDeposited"`
	Shares         sdkmath.Int     `json:"shares"`
	EntryFeeShares sdkmath.Int     `json:"entryFeeShares"`
	Cooldown       time.Duration   `json:"cooldown"`
	CooldownEndsAt time.Time       `json:"cooldownEndsAt"`
	TotalSupply    sdkmath.Int     `json:"totalSupply"`
	FundValue      sdkmath.Int     `json:"fundValue"`
}

// WithdrawReceipt lists what a holder received for burned shares.
type WithdrawReceipt struct {
	Fund           address.Address
	Holder         address.Address
	Recipient      address.Address
	Shares         sdkmath.Int
	ExpectedValue  sdkmath.Int
	ValueWithdrawn sdkmath.Int
	Assets         []domain.WithdrawnAsset
	TotalSupply    sdkmath.Int
}

// FeeMintReceipt reports minted manager fees; zero shares when nothing accrued.
type FeeMintReceipt struct {
	Fund           address.Address
	ManagerShares  sdkmath.Int
	ProtocolShares sdkmath.Int
	TokenPrice     sdkmath.Int
	MintedAt       time.Time
}

// Total is the number of shares minted.
func (r FeeMintReceipt) Total() sdkmath.Int {
	return r.ManagerShares.Add(r.ProtocolShares)
}

// ExecutionReceipt tags an executed call.
type ExecutionReceipt struct {
	Fund   address.Address
	Target address.Address
	Guard  string
	OpTag  string
	Public bool
}

// AssetValuation is one line of a fund valuation.
type AssetValuation struct {
	Asset     address.Address
	Tag       guarddomain.Tag
	IsDeposit bool
	Balance   sdkmath.Int
	Value     sdkmath.Int
}

// FundSummary is the valuation view of a fund.
type FundSummary struct {
	Fund                        address.Address
	Name                        string
	Symbol                      string
	Manager                     address.Address
	Trader                      address.Address
	Private                     bool
	TotalSupply                 sdkmath.Int
	TotalValue                  sdkmath.Int
	Assets                      []AssetValuation
	TokenPrice                  sdkmath.Int
	TokenPriceWithoutManagerFee sdkmath.Int
	AvailableManagerFee         sdkmath.Int
	Fees                        domain.FeeNumerators
	ProposalState               domain.ProposalState
	Proposal                    *domain.FeeProposal
	MinDepositUSD               sdkmath.Int
	SchemaVersion               int
	Paused                      bool
}

// HolderView exposes share balance and cooldown state of one holder.
type HolderView struct {
	Fund              address.Address
	Holder            address.Address
	Balance           sdkmath.Int
	LastDepositTime   time.Time
	LastCooldown      time.Duration
	CooldownEndsAt    time.Time
	RemainingCooldown time.Duration
}
