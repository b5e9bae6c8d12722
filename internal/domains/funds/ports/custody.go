package ports

import (
	"context"

	sdkmath "cosmossdk.io/math"

	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Custody moves fungible assets in and out of fund custody.
type Custody interface {
	BalanceOf(ctx context.Context, asset, holder address.Address) (sdkmath.Int, error)
	// Pull moves amount from depositor into the fund. The depositor must have
	// approved the fund as spender.
	Pull(ctx context.Context, asset, depositor, fund address.Address, amount sdkmath.Int) error
	// Push releases amount from the fund to recipient.
	Push(ctx context.Context, asset, fund, recipient address.Address, amount sdkmath.Int) error
}

// Executor forwards an authorized call from the fund to target.
type Executor interface {
	Call(ctx context.Context, fund, target address.Address, data []byte) error
}

// GuardDirectory resolves the guards bound by governance.
type GuardDirectory interface {
	AssetGuard(asset address.Address) (guardports.AssetGuard, guarddomain.AssetBinding, error)
	ContractGuard(target address.Address) (guardports.ContractGuard, bool)
}
