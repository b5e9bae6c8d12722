package ports

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Holding is an amount of one asset.
type Holding struct {
	Asset  address.Address
	Amount sdkmath.Int
}

// LiquidityPool exposes the reserves behind an LP token.
type LiquidityPool interface {
	Reserves(ctx context.Context, lpToken address.Address) (PoolReserves, error)
}

type PoolReserves struct {
	Token0, Token1     address.Address
	Reserve0, Reserve1 sdkmath.Int
	TotalSupply        sdkmath.Int
}

// StakingPool holds LP tokens staked on behalf of a fund.
type StakingPool interface {
	Staked(ctx context.Context, lpToken, holder address.Address) (sdkmath.Int, error)
	// Unstake returns amount of lpToken to the holder's custody.
	Unstake(ctx context.Context, lpToken, holder address.Address, amount sdkmath.Int) error
}

// LendingMarket tracks supplied collateral and borrowed debt.
type LendingMarket interface {
	Position(ctx context.Context, market, holder address.Address) (LendingPosition, error)
	// Unwind repays the portion of debt and releases the matching collateral to custody.
	Unwind(ctx context.Context, market, holder address.Address, numerator, denominator sdkmath.Int) ([]Holding, error)
}

type LendingPosition struct {
	Collateral []Holding
	Debt       []Holding
}

// PerpMarket is a perpetual futures market with isolated margin.
type PerpMarket interface {
	IsMarket(market address.Address) bool
	Position(ctx context.Context, market, holder address.Address) (PerpPosition, error)
	MarginAsset(ctx context.Context, market address.Address) (address.Address, error)
	IndexAsset(ctx context.Context, market address.Address) (address.Address, error)
	MinMargin(ctx context.Context, market address.Address) (sdkmath.Int, error)
	// WithdrawMargin moves margin (in margin asset units) back to custody.
	WithdrawMargin(ctx context.Context, market, holder address.Address, amount sdkmath.Int) error
	// ModifyPosition changes the signed size by delta.
	ModifyPosition(ctx context.Context, market, holder address.Address, delta sdkmath.Int) error
	// Close settles the position and returns all remaining margin to custody.
	Close(ctx context.Context, market, holder address.Address) (sdkmath.Int, error)
}

// PerpPosition amounts are in margin asset units except Size, which is in index units.
type PerpPosition struct {
	Margin     sdkmath.Int
	Size       sdkmath.Int
	EntryPrice sdkmath.Int
	Funding    sdkmath.Int
}

// OptionMarket holds option positions settled in a settlement asset.
type OptionMarket interface {
	Position(ctx context.Context, market, holder address.Address) (OptionPosition, error)
	MinPosition(ctx context.Context, market address.Address) (sdkmath.Int, error)
	// ClosePosition settles amount contracts and returns the proceeds to custody.
	ClosePosition(ctx context.Context, market, holder address.Address, amount sdkmath.Int) (sdkmath.Int, error)
}

// OptionPosition amounts are whole contracts at 18 decimals.
type OptionPosition struct {
	Underlying address.Address
	Settlement address.Address
	Strike     sdkmath.Int
	Amount     sdkmath.Int
	Call       bool
}
