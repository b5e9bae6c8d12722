package ports

import (
	"context"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Service defines the fund ledger use cases exposed to adapters (inbound/driving port).
type Service interface {
	CreateFund(ctx context.Context, input types.CreateFundInput) (*types.FundProjection, error)
	Deposit(ctx context.Context, input types.DepositInput) (*types.DepositReceipt, error)
	DepositWithCustomCooldown(ctx context.Context, input types.DepositInput) (*types.DepositReceipt, error)
	Withdraw(ctx context.Context, input types.WithdrawInput) (*types.WithdrawReceipt, error)
	WithdrawSafe(ctx context.Context, input types.WithdrawInput, slippageToleranceBps uint64) (*types.WithdrawReceipt, error)
	Transfer(ctx context.Context, input types.TransferInput) error
	MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error)
	Execute(ctx context.Context, input types.ExecuteInput) (*types.ExecutionReceipt, error)
	ChangeAssets(ctx context.Context, input types.ChangeAssetsInput) (*types.FundProjection, error)

	AnnounceFeeIncrease(ctx context.Context, input types.FeesInput) (*types.FundProjection, error)
	CommitFeeIncrease(ctx context.Context, input types.FundRef) (*types.FundProjection, error)
	RenounceFeeIncrease(ctx context.Context, input types.FundRef) (*types.FundProjection, error)
	SetFeeNumerators(ctx context.Context, input types.FeesInput) (*types.FundProjection, error)

	AddMembers(ctx context.Context, input types.MembersInput) (*types.FundProjection, error)
	RemoveMembers(ctx context.Context, input types.MembersInput) (*types.FundProjection, error)
	SetMembershipCollection(ctx context.Context, input types.MembershipCollectionInput) (*types.FundProjection, error)
	SetTrader(ctx context.Context, input types.RoleInput) (*types.FundProjection, error)
	ChangeManager(ctx context.Context, input types.RoleInput) (*types.FundProjection, error)
	SetMinDepositUSD(ctx context.Context, input types.MinDepositInput) (*types.FundProjection, error)
	MigrateFund(ctx context.Context, input types.MigrateInput) (*types.FundProjection, error)

	GetFund(ctx context.Context, fund address.Address) (*types.FundProjection, error)
	ListFunds(ctx context.Context) ([]*types.FundProjection, error)
	FundSummary(ctx context.Context, fund address.Address) (*types.FundSummary, error)
	Holder(ctx context.Context, fund, holder address.Address) (*types.HolderView, error)
	History(ctx context.Context, fund address.Address, limit int) ([]RecordedEvent, error)
}
