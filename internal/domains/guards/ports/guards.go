package ports

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// AssetGuard reports how much of an asset type a fund holds.
type AssetGuard interface {
	Tag() domain.Tag
	// Balance is the fund's holding in the asset's base units.
	Balance(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error)
}

// PositionValuer is implemented by guards of composite positions that value
// themselves in the valuation currency. The value is never negative.
type PositionValuer interface {
	Value(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error)
}

// WithdrawProcessor is implemented by guards that need custom handling when a
// holder redeems a slice of the fund. Released assets end up in fund custody.
type WithdrawProcessor interface {
	WithdrawProcessing(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawResult, error)
}

// ContractGuard decides whether a fund may call an external contract.
type ContractGuard interface {
	Name() string
	Authorize(ctx context.Context, fund domain.FundContext, target address.Address, data []byte) (domain.Authorization, error)
}

// AfterCallGuard runs structural checks once the external call has completed.
type AfterCallGuard interface {
	AfterCall(ctx context.Context, fund domain.FundContext, target address.Address, data []byte) error
}

// AssetDirectory resolves asset registrations.
type AssetDirectory interface {
	Binding(asset address.Address) (domain.AssetBinding, error)
}

// ContractDirectory resolves contract guards.
type ContractDirectory interface {
	ContractGuard(target address.Address) (ContractGuard, bool)
}

// TokenReader reads fungible balances held in custody.
type TokenReader interface {
	BalanceOf(ctx context.Context, asset, holder address.Address) (sdkmath.Int, error)
}
