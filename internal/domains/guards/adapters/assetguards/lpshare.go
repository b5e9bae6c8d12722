package assetguards

import (
	"context"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// LPShare guards liquidity-pool tokens held directly or staked.
//
// Pools are valued from oracle prices of the underlying tokens using the
// fair-reserve formula 2*sqrt(v0*v1), so the pool's own spot ratio cannot be
// skewed to inflate the fund.
type LPShare struct {
	valuer
	tokens  ports.TokenReader
	pools   ports.LiquidityPool
	staking ports.StakingPool
}

func NewLPShare(tokens ports.TokenReader, pools ports.LiquidityPool, staking ports.StakingPool, oracle pricingports.Oracle, assets ports.AssetDirectory) *LPShare {
	return &LPShare{valuer: valuer{oracle: oracle, assets: assets}, tokens: tokens, pools: pools, staking: staking}
}

func (g *LPShare) Tag() domain.Tag { return domain.TagLPShare }

func (g *LPShare) holdings(ctx context.Context, fund, lp address.Address) (held, staked sdkmath.Int, err error) {
	held, err = g.tokens.BalanceOf(ctx, lp, fund)
	if err != nil {
		return
	}
	staked = sdkmath.ZeroInt()
	if g.staking != nil {
		staked, err = g.staking.Staked(ctx, lp, fund)
	}
	return
}

func (g *LPShare) Balance(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	held, staked, err := g.holdings(ctx, fund, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return held.Add(staked), nil
}

func (g *LPShare) Value(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	balance, err := g.Balance(ctx, fund, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return g.valueOf(ctx, asset, balance)
}

func (g *LPShare) valueOf(ctx context.Context, lp address.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	r, err := g.pools.Reserves(ctx, lp)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if r.TotalSupply.IsNil() || r.TotalSupply.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	v0, err := g.spotValue(ctx, r.Token0, r.Reserve0)
	if err != nil {
		return sdkmath.Int{}, err
	}
	v1, err := g.spotValue(ctx, r.Token1, r.Reserve1)
	if err != nil {
		return sdkmath.Int{}, err
	}
	root := new(big.Int).Sqrt(v0.Mul(v1).BigInt())
	poolValue := sdkmath.NewIntFromBigInt(root).MulRaw(2)
	return poolValue.Mul(amount).Quo(r.TotalSupply), nil
}

// WithdrawProcessing unstakes the withdrawer's slice of the staked balance so
// the whole slice can leave custody as plain LP tokens.
func (g *LPShare) WithdrawProcessing(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawResult, error) {
	held, staked, err := g.holdings(ctx, req.Fund, req.Asset)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	heldPortion := req.Portion(held)
	stakedPortion := req.Portion(staked)
	if stakedPortion.IsPositive() {
		if err := g.staking.Unstake(ctx, req.Asset, req.Fund, stakedPortion); err != nil {
			return domain.WithdrawResult{}, err
		}
	}
	amount := heldPortion.Add(stakedPortion)
	if amount.IsZero() {
		return domain.WithdrawResult{}, nil
	}
	value, err := g.valueOf(ctx, req.Asset, amount)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	return domain.WithdrawResult{Assets: []domain.WithdrawnAsset{{
		Asset:    req.Asset,
		Amount:   amount,
		Value:    value,
		External: stakedPortion.IsPositive(),
	}}}, nil
}

var (
	_ ports.AssetGuard        = (*LPShare)(nil)
	_ ports.PositionValuer    = (*LPShare)(nil)
	_ ports.WithdrawProcessor = (*LPShare)(nil)
)
