package types

import (
	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// FundRef identifies a fund and the caller acting on it.
type FundRef struct {
	Fund   address.Address
	Caller address.Address
}

// CreateFundInput describes a new fund. A nil MinDepositUSD takes the governance default.
type CreateFundInput struct {
	Manager       address.Address
	Name          string
	Symbol        string
	Assets        []domain.SupportedAsset
	Fees          domain.FeeNumerators
	Members       []address.Address
	MinDepositUSD *sdkmath.Int
}

// DepositInput moves Amount of Asset from Depositor into the fund for Recipient.
type DepositInput struct {
	Fund           address.Address
	Depositor      address.Address
	Recipient      address.Address
	Asset          address.Address
	Amount         sdkmath.Int
	IdempotencyKey string
}

// WithdrawInput burns Shares of Holder and pays Recipient.
type WithdrawInput struct {
	Fund      address.Address
	Holder    address.Address
	Recipient address.Address
	Shares    sdkmath.Int
}

type TransferInput struct {
	Fund   address.Address
	From   address.Address
	To     address.Address
	Shares sdkmath.Int
}

// ExecuteInput is a call the fund makes to Target on behalf of Caller.
type ExecuteInput struct {
	Fund   address.Address
	Caller address.Address
	Target address.Address
	Data   []byte
}

type ChangeAssetsInput struct {
	FundRef
	Add    []domain.SupportedAsset
	Remove []address.Address
}

type FeesInput struct {
	FundRef
	Fees domain.FeeNumerators
}

type MembersInput struct {
	FundRef
	Members []address.Address
}

type MembershipCollectionInput struct {
	FundRef
	Collection address.Address
	Enabled    bool
}

// RoleInput assigns Account to a fund role. A zero Account clears the trader.
type RoleInput struct {
	FundRef
	Account address.Address
}

type MinDepositInput struct {
	FundRef
	MinDepositUSD sdkmath.Int
}

type MigrateInput struct {
	FundRef
	Version int
}
